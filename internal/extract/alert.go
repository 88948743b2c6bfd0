package extract

import (
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

const (
	timestampLabel = "Zeitpunkt"
	alertLayout    = "2-1-06 15:04:05"
)

// Labeled fields the hardware appends to every alarm; they are not part of
// the reason.
var alertLabels = []string{"Empfaenger", timestampLabel, "Anlage", "Serial", "Adr", "SerNo"}

// AlertResult is the outcome of reading one alarm body.
type AlertResult struct {
	Record domain.AlertRecord
	// TimestampDefaulted is set when the body had no usable point in
	// time and the record was stamped with the ingestion time.
	TimestampDefaulted bool
}

// ParseAlert builds the alert record for an alarm body. now is used when
// the "Zeitpunkt=" label is missing or unparsable.
func ParseAlert(body string, now time.Time) AlertResult {
	res := AlertResult{
		Record: domain.AlertRecord{
			Reason:  StripLabels(body),
			Message: body,
		},
	}
	ts, ok := alertTime(body)
	if !ok {
		ts = now
		res.TimestampDefaulted = true
	}
	res.Record.Datetime = ts.UTC()
	return res
}

// StripLabels drops every labeled field (from the label to the end of its
// line) and all line breaks.
func StripLabels(body string) string {
	var b strings.Builder
	for _, l := range splitLines(body) {
		b.WriteString(strings.ReplaceAll(cutAtFirst(l, alertLabels), "\r", ""))
	}
	reason := b.String()
	// Joining lines can bring a label back together.
	for changed := true; changed; {
		changed = false
		for _, l := range alertLabels {
			if strings.Contains(reason, l) {
				reason = strings.ReplaceAll(reason, l, "")
				changed = true
			}
		}
	}
	return reason
}

// alertTime reads "Zeitpunkt=DD-MM-YY / HH:MM:SS".
func alertTime(body string) (time.Time, bool) {
	for _, l := range splitLines(body) {
		i := strings.Index(l, timestampLabel)
		if i < 0 {
			continue
		}
		parts := strings.Split(l[i:], "=")
		if len(parts) < 2 {
			return time.Time{}, false
		}
		value := strings.TrimSpace(strings.Replace(parts[1], " / ", " ", 1))
		t, err := time.ParseInLocation(alertLayout, value, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
