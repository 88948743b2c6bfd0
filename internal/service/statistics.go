package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

// Statistic types accepted by Run.
const (
	StatTotal     = "total"
	StatYesterday = "yesterday"
	StatWeekly    = "weekly"
	StatMonthly   = "monthly"
	StatYear      = "year"
)

// Row is one period of a report with the energy of every unit.
type Row struct {
	Label  string             `json:"label"`
	Values map[string]float64 `json:"values"`
}

type Report struct {
	Type  string   `json:"type"`
	Units []string `json:"units"`
	Rows  []Row    `json:"rows"`
}

type StatisticsService struct {
	store *store.Store
	units []string
	now   func() time.Time
}

func NewStatisticsService(st *store.Store, units []string) *StatisticsService {
	return &StatisticsService{store: st, units: units, now: time.Now}
}

// SetClock replaces the time source.
func (s *StatisticsService) SetClock(now func() time.Time) { s.now = now }

// Run builds the report of the given type; unknown types give the total.
func (s *StatisticsService) Run(ctx context.Context, typ string) (*Report, error) {
	switch typ {
	case StatYesterday:
		return s.Yesterday(ctx)
	case StatWeekly:
		return s.Weekly(ctx)
	case StatMonthly:
		return s.Monthly(ctx)
	case StatYear:
		return s.Year(ctx)
	default:
		return s.Total(ctx)
	}
}

// Total is the energy per unit over all time.
func (s *StatisticsService) Total(ctx context.Context) (*Report, error) {
	rows, err := s.store.GetReportWithList(ctx, 0, 0, []any{}, []any{map[string]any{}}, SolarDesign, EnergyView, RoundList, 1)
	if err != nil {
		return nil, err
	}
	row := s.newRow(StatTotal)
	for _, r := range rows {
		unit, ok := keyString(r.Key, 0)
		if !ok {
			continue
		}
		row.Values[unit] += valueOf(r)
	}
	return &Report{Type: StatTotal, Units: s.units, Rows: []Row{row}}, nil
}

// Yesterday is the energy per hour of the previous UTC day.
func (s *StatisticsService) Yesterday(ctx context.Context) (*Report, error) {
	day := startOfDay(s.now()).AddDate(0, 0, -1)
	start := []any{day.Year(), int(day.Month()), day.Day(), 0}
	end := []any{day.Year(), int(day.Month()), day.Day(), 23}

	labels := make([]string, 24)
	for h := range labels {
		labels[h] = fmt.Sprintf("%02d:00", h)
	}
	return s.periodReport(ctx, StatYesterday, start, end, 5, labels, func(key []any) (int, bool) {
		h, ok := keyInt(key, 4)
		return h, ok
	})
}

// Weekly is the energy per day of the last seven UTC days, today included.
func (s *StatisticsService) Weekly(ctx context.Context) (*Report, error) {
	today := startOfDay(s.now())
	first := today.AddDate(0, 0, -6)
	start := []any{first.Year(), int(first.Month()), first.Day()}
	end := []any{today.Year(), int(today.Month()), today.Day(), map[string]any{}}

	labels := make([]string, 7)
	for i := range labels {
		labels[i] = first.AddDate(0, 0, i).Format("02.01.2006")
	}
	return s.periodReport(ctx, StatWeekly, start, end, 4, labels, func(key []any) (int, bool) {
		y, ok1 := keyInt(key, 1)
		m, ok2 := keyInt(key, 2)
		d, ok3 := keyInt(key, 3)
		if !ok1 || !ok2 || !ok3 {
			return 0, false
		}
		day := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		return int(day.Sub(first).Hours() / 24), true
	})
}

// Monthly is the energy per month of the current UTC year.
func (s *StatisticsService) Monthly(ctx context.Context) (*Report, error) {
	year := s.now().UTC().Year()
	start := []any{year}
	end := []any{year, map[string]any{}}

	labels := make([]string, 12)
	for i := range labels {
		labels[i] = time.Month(i + 1).String()
	}
	return s.periodReport(ctx, StatMonthly, start, end, 3, labels, func(key []any) (int, bool) {
		m, ok := keyInt(key, 2)
		return m - 1, ok
	})
}

// Year is the energy per calendar year, for every year with data.
func (s *StatisticsService) Year(ctx context.Context) (*Report, error) {
	perUnit, err := s.reportPerUnit(ctx, []any{}, []any{map[string]any{}}, 2)
	if err != nil {
		return nil, err
	}

	byYear := map[int]Row{}
	for _, r := range perUnit {
		unit, ok1 := keyString(r.Key, 0)
		y, ok2 := keyInt(r.Key, 1)
		if !ok1 || !ok2 {
			continue
		}
		row, ok := byYear[y]
		if !ok {
			row = s.newRow(strconv.Itoa(y))
			byYear[y] = row
		}
		row.Values[unit] += round2(valueOf(r))
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	rep := &Report{Type: StatYear, Units: s.units, Rows: make([]Row, 0, len(years))}
	for _, y := range years {
		rep.Rows = append(rep.Rows, byYear[y])
	}
	return rep, nil
}

// ByKeys reduces the energy view for explicit [name, year, month, day,
// hour] keys.
func (s *StatisticsService) ByKeys(ctx context.Context, keys []any) ([]store.ViewRow, error) {
	return s.store.GetReportByKeys(ctx, 0, 0, keys, SolarDesign, EnergyView, 0)
}

// periodReport fills one row per label; slot maps a reduced key to its
// label index.
func (s *StatisticsService) periodReport(ctx context.Context, typ string, start, end []any, groupLevel int, labels []string, slot func(key []any) (int, bool)) (*Report, error) {
	perUnit, err := s.reportPerUnit(ctx, start, end, groupLevel)
	if err != nil {
		return nil, err
	}

	rep := &Report{Type: typ, Units: s.units, Rows: make([]Row, len(labels))}
	for i, l := range labels {
		rep.Rows[i] = s.newRow(l)
	}
	for _, r := range perUnit {
		key, ok := r.Key.([]any)
		if !ok {
			continue
		}
		unit, ok := keyString(key, 0)
		if !ok {
			continue
		}
		i, ok := slot(key)
		if !ok || i < 0 || i >= len(rep.Rows) {
			continue
		}
		rep.Rows[i].Values[unit] += round2(valueOf(r))
	}
	return rep, nil
}

// reportPerUnit runs one grouped report per configured unit, prefixing the
// range with the unit name.
func (s *StatisticsService) reportPerUnit(ctx context.Context, start, end []any, groupLevel int) ([]store.ViewRow, error) {
	p := pool.NewWithResults[[]store.ViewRow]().WithContext(ctx).WithCancelOnError()
	for _, unit := range s.units {
		p.Go(func(ctx context.Context) ([]store.ViewRow, error) {
			return s.store.GetReport(ctx, 0, 0,
				append([]any{unit}, start...),
				append([]any{unit}, end...),
				SolarDesign, EnergyView, groupLevel)
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	var rows []store.ViewRow
	for _, r := range results {
		rows = append(rows, r...)
	}
	return rows, nil
}

func (s *StatisticsService) newRow(label string) Row {
	row := Row{Label: label, Values: make(map[string]float64, len(s.units))}
	for _, u := range s.units {
		row.Values[u] = 0
	}
	return row
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func keyString(key any, i int) (string, bool) {
	arr, ok := key.([]any)
	if !ok || i >= len(arr) {
		return "", false
	}
	s, ok := arr[i].(string)
	return s, ok
}

func keyInt(key any, i int) (int, bool) {
	arr, ok := key.([]any)
	if !ok || i >= len(arr) {
		return 0, false
	}
	switch n := arr[i].(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func valueOf(r store.ViewRow) float64 {
	f, _ := r.Value.(float64)
	return f
}
