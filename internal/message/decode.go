// Package message decodes raw RFC 5322 mails into subject, text and
// attachments.
package message

import (
	"bytes"
	"io"
	"regexp"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// Attachment is a named part of a mail.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a decoded mail.
type Message struct {
	Subject     string
	Text        string
	Attachments []Attachment
}

// Decode reads one complete mail from r. Text is the first text/plain
// part, or the first text/html part when the mail has no plain text.
// Every part that carries a file name is an attachment.
func Decode(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, domain.DecodeError("read header", err)
	}
	defer mr.Close()

	msg := &Message{}
	msg.Subject, err = mr.Header.Subject()
	if err != nil {
		msg.Subject = mr.Header.Get("Subject")
	}

	var html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !gomessage.IsUnknownCharset(err) {
				return nil, domain.DecodeError("read part", err)
			}
			if p == nil {
				continue
			}
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, domain.DecodeError("read part body", err)
		}

		switch h := p.Header.(type) {
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			ct, _, _ := h.ContentType()
			msg.Attachments = append(msg.Attachments, Attachment{Filename: name, ContentType: ct, Content: body})
		case *mail.InlineHeader:
			ct, params, _ := h.ContentType()
			if name := inlineFilename(h, params); name != "" {
				msg.Attachments = append(msg.Attachments, Attachment{Filename: name, ContentType: ct, Content: body})
				continue
			}
			switch {
			case ct == "text/plain" && msg.Text == "":
				msg.Text = string(body)
			case ct == "text/html" && html == "":
				html = string(body)
			}
		}
	}
	if msg.Text == "" {
		msg.Text = html
	}
	return msg, nil
}

// DecodeBytes is Decode over an in-memory mail.
func DecodeBytes(raw []byte) (*Message, error) {
	return Decode(bytes.NewReader(raw))
}

func inlineFilename(h *mail.InlineHeader, ctParams map[string]string) string {
	if _, params, err := h.ContentDisposition(); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return ctParams["name"]
}

// AttachmentsMatching returns the attachments whose file name matches
// pattern.
func (m *Message) AttachmentsMatching(pattern *regexp.Regexp) []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if pattern.MatchString(a.Filename) {
			out = append(out, a)
		}
	}
	return out
}
