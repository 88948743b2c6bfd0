// Package sample builds inverter mails the way the monitoring hardware
// sends them. The simulator and the tests feed them to the ingestion.
package sample

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

const (
	From         = "monitor@solar.example"
	To           = "ingest@solar.example"
	AlarmSubject = "Alarm: Wechselrichter"
)

// Reading is one row of an export.
type Reading struct {
	Time    time.Time
	Address int
	Name    string
	Serial  string
	PowerW  float64
	Energy  float64
}

// CSV renders an export for the given day. Energy is reported in kWh.
func CSV(day time.Time, readings []Reading) []byte {
	var b strings.Builder
	b.WriteString("[Info]\r\n")
	b.WriteString("Anlage=Solaranlage\r\n")
	fmt.Fprintf(&b, "Datum=%s\r\n", day.UTC().Format("020106"))
	b.WriteString(";s;Adresse;Name;Seriennummer;Pac;E-Tag\r\n")
	b.WriteString(";;;;;W;kWh\r\n")
	for _, r := range readings {
		fmt.Fprintf(&b, "%s;%d;%d;%s;%s;%g;%g\r\n",
			r.Time.UTC().Format("15:04:05"), r.Time.Unix()%60, r.Address, r.Name, r.Serial, r.PowerW, r.Energy)
	}
	return []byte(b.String())
}

// AttachmentName is the file name the hardware gives a daily export.
func AttachmentName(day time.Time) string {
	return "int_kostal_" + day.UTC().Format("20060102") + ".csv"
}

func header(subject string, at time.Time) mail.Header {
	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{{Name: "Solar Monitor", Address: From}})
	h.SetAddressList("To", []*mail.Address{{Address: To}})
	h.SetSubject(subject)
	return h
}

// TelemetryMail wraps an export as a base64 attachment next to a short
// text part.
func TelemetryMail(day time.Time, export []byte) ([]byte, error) {
	var b bytes.Buffer
	mw, err := mail.CreateWriter(&b, header("Tagesbericht "+day.UTC().Format("02.01.2006"), day))
	if err != nil {
		return nil, err
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return nil, err
	}
	io.WriteString(w, "Im Anhang finden Sie die Messwerte des Tages.\r\n")
	w.Close()
	tw.Close()

	var ah mail.AttachmentHeader
	ah.SetContentType("text/csv", nil)
	ah.SetFilename(AttachmentName(day))
	ah.Set("Content-Transfer-Encoding", "base64")
	w, err = mw.CreateAttachment(ah)
	if err != nil {
		return nil, err
	}
	w.Write(export)
	w.Close()

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// AlarmBody renders the labeled text of a fault report.
func AlarmBody(at time.Time, fault string) string {
	return strings.Join([]string{
		"Empfaenger=" + To,
		"Zeitpunkt=" + at.UTC().Format("02-01-06") + " / " + at.UTC().Format("15:04:05"),
		"Anlage=Solaranlage",
		fault,
		"Serial=90312ABC",
		"Adr=1",
	}, "\r\n")
}

// AlarmMail is a single part text mail carrying AlarmBody.
func AlarmMail(at time.Time, fault string) ([]byte, error) {
	var b bytes.Buffer
	h := header(AlarmSubject, at)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := mail.CreateSingleInlineWriter(&b, h)
	if err != nil {
		return nil, err
	}
	io.WriteString(w, AlarmBody(at, fault))
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
