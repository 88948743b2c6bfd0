package service

import (
	"math"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

// Design and view names used by the read side.
const (
	SolarDesign    = domain.TypeSolarData
	EnergyView     = "getKilowattHourByUnit"
	RoundList      = "round"
	ErrorDesign    = domain.TypeError
	ErrorsByDate   = "getErrorsByDate"
	nameColumn     = "name"
	datetimeColumn = "datetime"
)

// Designs returns every design the store serves. Energy is the sum of all
// columns measured in energyUnit.
func Designs(energyUnit string) []store.Design {
	return []store.Design{
		{
			Name: SolarDesign,
			Views: map[string]store.View{
				EnergyView: {
					DocType: domain.TypeSolarData,
					Map:     energyByUnit(energyUnit),
					Reduce:  store.Sum,
					Window:  energyWindow,
				},
			},
			Lists: map[string]store.ListFunc{
				RoundList: roundValues,
			},
		},
		{
			Name: ErrorDesign,
			Views: map[string]store.View{
				ErrorsByDate: {
					DocType: domain.TypeError,
					Map:     errorsByDate,
					Window:  errorsWindow,
				},
			},
		},
	}
}

// energyByUnit keys every reading by [name, year, month, day, hour].
func energyByUnit(energyUnit string) store.MapFunc {
	return func(doc *store.Document, emit func(key, value any)) {
		name, ok := columnValue(doc, nameColumn).(string)
		if !ok {
			return
		}
		ts, ok := columnValue(doc, datetimeColumn).(string)
		if !ok {
			return
		}
		t, err := domain.ParseTime(ts)
		if err != nil {
			return
		}
		t = t.UTC()

		energy, found := 0.0, false
		for _, raw := range doc.Fields {
			col, ok := raw.(map[string]any)
			if !ok || !strings.EqualFold(asString(col["unit"]), energyUnit) {
				continue
			}
			if f, ok := col["value"].(float64); ok {
				energy += f
				found = true
			}
		}
		if !found {
			return
		}
		emit([]any{strings.TrimSpace(name), t.Year(), int(t.Month()), t.Day(), t.Hour()}, energy)
	}
}

// energyWindow bounds a range of one unit's [name, year, month, day, hour]
// keys in time. Ranges spanning several units are not bounded.
func energyWindow(start, end any) (store.Window, bool) {
	s, ok1 := start.([]any)
	e, ok2 := end.([]any)
	if !ok1 || !ok2 || len(s) == 0 || len(e) == 0 {
		return store.Window{}, false
	}
	name, ok := s[0].(string)
	if other, ok2 := e[0].(string); !ok || !ok2 || name != other {
		return store.Window{}, false
	}

	var w store.Window
	if from, n := keyTime(s[1:]); n > 0 {
		w.From = from
	}
	if to, n := keyTime(e[1:]); n > 0 {
		// Every key with this prefix lies before the start of the next period.
		switch n {
		case 1:
			w.To = to.AddDate(1, 0, 0)
		case 2:
			w.To = to.AddDate(0, 1, 0)
		case 3:
			w.To = to.AddDate(0, 0, 1)
		default:
			w.To = to.Add(time.Hour)
		}
	}
	return w, true
}

// keyTime reads the numeric [year, month, day, hour] prefix of parts and
// returns its start together with the prefix length.
func keyTime(parts []any) (time.Time, int) {
	fields := [4]int{0, 1, 1, 0}
	n := 0
	for n < len(parts) && n < len(fields) {
		switch v := parts[n].(type) {
		case int:
			fields[n] = v
		case float64:
			fields[n] = int(math.Floor(v))
		default:
			return prefixStart(fields, n)
		}
		n++
	}
	return prefixStart(fields, n)
}

func prefixStart(fields [4]int, n int) (time.Time, int) {
	if n == 0 {
		return time.Time{}, 0
	}
	return time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], 0, 0, 0, time.UTC), n
}

// errorsWindow bounds a datetime key range. Only keys in the stored layout
// order like instants; any other end stays open.
func errorsWindow(start, end any) (store.Window, bool) {
	var w store.Window
	if s, ok := start.(string); ok {
		if t, err := time.Parse(domain.TimeLayout, s); err == nil {
			w.From = t
		}
	}
	if e, ok := end.(string); ok {
		if t, err := time.Parse(domain.TimeLayout, e); err == nil {
			w.To = t.Add(time.Millisecond)
		}
	}
	return w, true
}

func errorsByDate(doc *store.Document, emit func(key, value any)) {
	ts, ok := doc.Fields["datetime"].(string)
	if !ok {
		return
	}
	value := make(map[string]any, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		value[k] = v
	}
	value["_id"] = doc.ID
	value["_rev"] = doc.Rev
	emit(ts, value)
}

func roundValues(rows []store.ViewRow) []store.ViewRow {
	out := make([]store.ViewRow, len(rows))
	for i, r := range rows {
		out[i] = r
		if f, ok := r.Value.(float64); ok {
			out[i].Value = round2(f)
		}
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func columnValue(doc *store.Document, column string) any {
	col, ok := doc.Fields[column].(map[string]any)
	if !ok {
		return nil
	}
	return col["value"]
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
