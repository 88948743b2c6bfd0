package message_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/message"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/sample"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestDecode_MultipartWithAttachment(t *testing.T) {
	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	export := sample.CSV(day, []sample.Reading{{Time: day.Add(8 * time.Hour), Address: 1, Name: "Karl1", Serial: "1", PowerW: 100, Energy: 0.5}})
	raw, err := sample.TelemetryMail(day, export)
	if err != nil {
		t.Fatalf("build mail: %v", err)
	}

	msg, err := message.DecodeBytes(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Subject != "Tagesbericht 01.01.2021" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "Messwerte") {
		t.Errorf("text = %q", msg.Text)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(msg.Attachments))
	}
	a := msg.Attachments[0]
	if a.Filename != sample.AttachmentName(day) {
		t.Errorf("filename = %q", a.Filename)
	}
	if string(a.Content) != string(export) {
		t.Errorf("content differs from the export:\n%s", a.Content)
	}

	matching := msg.AttachmentsMatching(regexp.MustCompile("int_kostal"))
	if len(matching) != 1 {
		t.Errorf("matching attachments = %d, want 1", len(matching))
	}
	if n := len(msg.AttachmentsMatching(regexp.MustCompile("^other"))); n != 0 {
		t.Errorf("unexpected match count %d", n)
	}
}

func TestDecode_EncodedSubjectAndLegacyCharset(t *testing.T) {
	raw := crlf(`From: monitor@solar.example
To: ingest@solar.example
Subject: =?ISO-8859-1?Q?Alarm:_St=F6rung?=
MIME-Version: 1.0
Content-Type: text/plain; charset=ISO-8859-1
Content-Transfer-Encoding: quoted-printable

Zeitpunkt=3D01-01-21 / 08:00:00
St=F6rung am Wechselrichter
`)

	msg, err := message.DecodeBytes([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Subject != "Alarm: Störung" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "Zeitpunkt=01-01-21") || !strings.Contains(msg.Text, "Störung am") {
		t.Errorf("text = %q", msg.Text)
	}
	if len(msg.Attachments) != 0 {
		t.Errorf("got %d attachments, want 0", len(msg.Attachments))
	}
}

func TestDecode_HTMLFallbackAndInlineFilename(t *testing.T) {
	raw := crlf(`From: monitor@solar.example
Subject: Bericht
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary=XYZ

--XYZ
Content-Type: text/html; charset=utf-8

<p>Bericht</p>
--XYZ
Content-Type: text/csv; name="int_kostal_20210101.csv"
Content-Transfer-Encoding: base64

RGF0dW09MDEwMTIx
--XYZ--
`)

	msg, err := message.DecodeBytes([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Text != "<p>Bericht</p>" {
		t.Errorf("text = %q, want the html part", msg.Text)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != "int_kostal_20210101.csv" {
		t.Fatalf("attachments = %+v", msg.Attachments)
	}
	if string(msg.Attachments[0].Content) != "Datum=010121" {
		t.Errorf("content = %q", msg.Attachments[0].Content)
	}
}

func TestDecode_Malformed(t *testing.T) {
	raw := crlf(`Subject: broken
Content-Type: multipart/mixed; boundary=XYZ

--XYZ
Content-Type: text/plain
Content-Transfer-Encoding: base64

!!!! not base64 !!!!
--XYZ--
`)
	_, err := message.DecodeBytes([]byte(raw))
	if err == nil {
		t.Fatal("expected an error")
	}
	if domain.KindOf(err) != domain.KindDecode {
		t.Errorf("kind = %v, want decode", domain.KindOf(err))
	}
}
