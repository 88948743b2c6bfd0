package extract

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

const (
	dateMarker     = "Datum="
	dateLayout     = "020106"
	dateTimeLayout = "020106 15:04:05"
	timeColumn     = "datetime"
)

// Lines are cut at these markers before the CSV is read.
var metadataMarkers = []string{"[", "Anlage=", dateMarker, "Info;"}

var localizedColumns = map[string]string{
	"Adresse":      "address",
	"Name":         "name",
	"Seriennummer": "serial",
}

// TelemetryResult is the outcome of reading one inverter export.
type TelemetryResult struct {
	ReportDate time.Time
	Columns    []string
	Units      map[string]string
	Records    []domain.TelemetryRecord
}

// ParseTelemetry reads a semicolon separated inverter export. The report
// date comes from the "Datum=DDMMYY" line, the first data row holds the
// units, and every further row becomes one record whose datetime combines
// the report date with the row's time of day.
func ParseTelemetry(content []byte) (*TelemetryResult, error) {
	lines := splitLines(string(content))

	date, err := reportDate(lines)
	if err != nil {
		return nil, err
	}

	var kept []string
	for _, l := range lines {
		l = cutAtFirst(l, metadataMarkers)
		if strings.TrimSpace(l) == "" {
			continue
		}
		kept = append(kept, l)
	}
	if len(kept) == 0 {
		return nil, domain.ExtractionError("telemetry", "no header line")
	}

	r := csv.NewReader(strings.NewReader(strings.Join(kept, "\n")))
	r.Comma = ';'
	rows, err := r.ReadAll()
	if err != nil {
		return nil, domain.ExtractionError("telemetry", "malformed csv: "+err.Error())
	}

	header := renameColumns(rows[0])
	timeIdx := -1
	for i, h := range header {
		if h == timeColumn {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return nil, domain.ExtractionError("telemetry", "no time column in header")
	}

	res := &TelemetryResult{
		ReportDate: date,
		Columns:    header,
		Units:      map[string]string{},
		Records:    []domain.TelemetryRecord{},
	}
	if len(rows) < 2 {
		return res, nil
	}
	for i, h := range header {
		if h != "" {
			res.Units[h] = strings.TrimSpace(rows[1][i])
		}
	}

	for n, row := range rows[2:] {
		clock := strings.TrimSpace(row[timeIdx])
		ts, err := time.ParseInLocation(dateTimeLayout, date.Format(dateLayout)+" "+clock, time.UTC)
		if err != nil {
			return nil, domain.ExtractionError("telemetry", fmt.Sprintf("row %d: bad time %q", n+1, clock))
		}

		rec := domain.TelemetryRecord{Datetime: ts, Fields: make(map[string]domain.Field, len(header))}
		for i, h := range header {
			if h == "" {
				continue
			}
			f := domain.Field{Value: Coerce(row[i]), Unit: res.Units[h]}
			if i == timeIdx {
				f.Value = domain.FormatTime(ts)
			}
			rec.Fields[h] = f
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func reportDate(lines []string) (time.Time, error) {
	for _, l := range lines {
		i := strings.Index(l, dateMarker)
		if i < 0 {
			continue
		}
		token := l[i+len(dateMarker):]
		if j := strings.IndexAny(token, "=;"); j >= 0 {
			token = token[:j]
		}
		token = strings.TrimSpace(token)
		d, err := time.ParseInLocation(dateLayout, token, time.UTC)
		if err != nil {
			return time.Time{}, domain.ExtractionError("telemetry", fmt.Sprintf("bad report date %q", token))
		}
		return d, nil
	}
	return time.Time{}, domain.ExtractionError("telemetry", "missing "+dateMarker+" line")
}

// renameColumns maps the localized header to canonical names. The time
// column carries no header of its own: it is the blank cell before "s".
func renameColumns(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if c, ok := localizedColumns[h]; ok {
			h = c
		}
		out[i] = h
	}
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "" && out[i+1] == "s" {
			out[i] = timeColumn
			break
		}
	}
	return out
}

// Coerce converts a cell to a float64 when it reads as a number, to 0 when
// it is empty, and otherwise returns it unchanged.
func Coerce(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0.0
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}
