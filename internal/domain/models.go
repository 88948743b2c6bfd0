package domain

import "time"

// Document type discriminators.
const (
	TypeSolarData = "solarData"
	TypeError     = "error"
)

// TimeLayout renders instants the way stored documents carry them.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Field is one telemetry column: the coerced value and its unit.
type Field struct {
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// TelemetryRecord is one CSV data row of an inverter export.
type TelemetryRecord struct {
	Datetime time.Time
	Fields   map[string]Field
}

// Body returns the flat document body for the record. The datetime column
// is stored like every other column, with its value as an ISO instant.
func (r TelemetryRecord) Body() map[string]any {
	body := make(map[string]any, len(r.Fields)+1)
	for name, f := range r.Fields {
		col := map[string]any{"value": f.Value}
		if f.Unit != "" {
			col["unit"] = f.Unit
		}
		body[name] = col
	}
	body["type"] = TypeSolarData
	return body
}

// AlertRecord is a fault message reported by the monitoring hardware.
type AlertRecord struct {
	Reason   string    `json:"reason"`
	Message  string    `json:"message"`
	Datetime time.Time `json:"datetime"`
}

// Body returns the flat document body for the alert.
func (a AlertRecord) Body() map[string]any {
	return map[string]any{
		"type":     TypeError,
		"reason":   a.Reason,
		"message":  a.Message,
		"datetime": FormatTime(a.Datetime),
	}
}

// FormatTime renders t in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts the stored layout and plain RFC 3339.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
