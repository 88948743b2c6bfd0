package store

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// MapFunc emits zero or more key/value rows for a document.
type MapFunc func(doc *Document, emit func(key, value any))

// ReduceFunc folds the values of one group into a single value.
type ReduceFunc func(values []any) any

// ListFunc post-processes the rows of a view query.
type ListFunc func(rows []ViewRow) []ViewRow

// View is a named server-side aggregation over documents of one type.
//
// Window, when set, maps a key range (ascending, normalized keys, nil for
// an open end) to the time span of the documents that can emit keys in it.
// It must never exclude a document whose keys fall in the range; ok=false
// means the range cannot be bounded in time.
type View struct {
	DocType string
	Map     MapFunc
	Reduce  ReduceFunc
	Window  func(start, end any) (w Window, ok bool)
}

// Window is the span [From, To) of document times. A zero end is open.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies in the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// Design groups views and list functions under one name.
type Design struct {
	Name  string
	Views map[string]View
	Lists map[string]ListFunc
}

// ViewQuery carries the view options understood by the store. A nil
// StartKey or EndKey leaves that end of the range open.
type ViewQuery struct {
	StartKey   any   `json:"startkey,omitempty"`
	EndKey     any   `json:"endkey,omitempty"`
	Keys       []any `json:"keys,omitempty"`
	Skip       int   `json:"skip,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	Descending bool  `json:"descending,omitempty"`
	Reduce     bool  `json:"reduce,omitempty"`
	GroupLevel int   `json:"group_level,omitempty"`
	Group      bool  `json:"group,omitempty"`
}

// ViewRow is one row of a view result. ID is empty for reduced rows.
type ViewRow struct {
	ID    string `json:"id,omitempty"`
	Key   any    `json:"key"`
	Value any    `json:"value"`
}

// Sum adds up numeric values; non-numeric values count as zero.
func Sum(values []any) any {
	total := 0.0
	for _, v := range values {
		if f, ok := toFloat(v); ok {
			total += f
		}
	}
	return total
}

// Count returns the number of values.
func Count(values []any) any {
	return float64(len(values))
}

func runView(docs []*Document, v View, q ViewQuery) ([]ViewRow, error) {
	if q.Reduce && v.Reduce == nil {
		return nil, domain.DatabaseError(http.StatusBadRequest, "reduce requested on a view without reduce function")
	}

	var rows []ViewRow
	for _, doc := range docs {
		if v.DocType != "" && doc.Type() != v.DocType {
			continue
		}
		id := doc.ID
		v.Map(doc, func(key, value any) {
			rows = append(rows, ViewRow{ID: id, Key: normalizeKey(key), Value: value})
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := CompareKeys(rows[i].Key, rows[j].Key)
		if c == 0 {
			return rows[i].ID < rows[j].ID
		}
		return c < 0
	})
	if q.Descending {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	if len(q.Keys) > 0 {
		rows = selectKeys(rows, q.Keys)
	} else {
		rows = selectRange(rows, normalizeKey(q.StartKey), normalizeKey(q.EndKey), q.Descending)
	}

	if q.Reduce {
		rows = reduceRows(rows, v.Reduce, q)
	}
	return page(rows, q.Skip, q.Limit), nil
}

func selectKeys(rows []ViewRow, keys []any) []ViewRow {
	var out []ViewRow
	for _, k := range keys {
		k = normalizeKey(k)
		for _, r := range rows {
			if CompareKeys(r.Key, k) == 0 {
				out = append(out, r)
			}
		}
	}
	return out
}

func selectRange(rows []ViewRow, start, end any, descending bool) []ViewRow {
	out := rows[:0]
	for _, r := range rows {
		if start != nil {
			c := CompareKeys(r.Key, start)
			if (!descending && c < 0) || (descending && c > 0) {
				continue
			}
		}
		if end != nil {
			c := CompareKeys(r.Key, end)
			if (!descending && c > 0) || (descending && c < 0) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// reduceRows folds consecutive rows sharing a group key. Without group or
// group_level everything collapses into one row with a null key.
func reduceRows(rows []ViewRow, reduce ReduceFunc, q ViewQuery) []ViewRow {
	grouped := q.Group || q.GroupLevel > 0
	if !grouped {
		if len(rows) == 0 {
			return nil
		}
		values := make([]any, len(rows))
		for i, r := range rows {
			values[i] = r.Value
		}
		return []ViewRow{{Key: nil, Value: reduce(values)}}
	}

	var out []ViewRow
	var values []any
	var current any
	flush := func() {
		if values != nil {
			out = append(out, ViewRow{Key: current, Value: reduce(values)})
		}
	}
	for _, r := range rows {
		key := r.Key
		if !q.Group {
			key = truncateKey(key, q.GroupLevel)
		}
		if values != nil && CompareKeys(key, current) == 0 {
			values = append(values, r.Value)
			continue
		}
		flush()
		current = key
		values = []any{r.Value}
	}
	flush()
	return out
}

func truncateKey(key any, level int) any {
	arr, ok := key.([]any)
	if !ok || len(arr) <= level {
		return key
	}
	return append([]any(nil), arr[:level]...)
}

func page(rows []ViewRow, skip, limit int) []ViewRow {
	if skip > 0 {
		if skip >= len(rows) {
			return []ViewRow{}
		}
		rows = rows[skip:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	if rows == nil {
		return []ViewRow{}
	}
	return rows
}

func (d Design) view(name string) (View, error) {
	v, ok := d.Views[name]
	if !ok || v.Map == nil {
		return View{}, domain.DatabaseError(http.StatusNotFound, fmt.Sprintf("missing_named_view %s/%s", d.Name, name))
	}
	return v, nil
}
