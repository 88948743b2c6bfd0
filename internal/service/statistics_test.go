package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/service"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

var clock = time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC)

func reading(name string, at time.Time, kwh float64) *store.Document {
	rec := domain.TelemetryRecord{
		Datetime: at,
		Fields: map[string]domain.Field{
			"datetime": {Value: domain.FormatTime(at)},
			"name":     {Value: name},
			"E-Tag":    {Value: kwh, Unit: "kWh"},
			"Pac":      {Value: 300.0, Unit: "W"},
		},
	}
	return store.NewDocument(rec.Body())
}

func seeded(t *testing.T) *service.Services {
	t.Helper()
	st := store.New(store.NewMemoryBackend(), 0, service.Designs("kWh")...)
	docs := []*store.Document{
		reading("Karl1", time.Date(2021, 3, 9, 8, 15, 0, 0, time.UTC), 1.5),
		reading("Karl1", time.Date(2021, 3, 9, 9, 0, 0, 0, time.UTC), 2),
		reading("Karl2", time.Date(2021, 3, 9, 8, 0, 0, 0, time.UTC), 4),
		reading("Karl1", time.Date(2021, 3, 10, 10, 0, 0, 0, time.UTC), 1),
		reading("Karl1", time.Date(2021, 1, 5, 10, 0, 0, 0, time.UTC), 10),
		reading("Karl2", time.Date(2020, 6, 1, 10, 0, 0, 0, time.UTC), 100),
	}
	alert := domain.AlertRecord{Reason: "Fehlercode 5", Message: "m", Datetime: clock}
	docs = append(docs, store.NewDocument(alert.Body()))
	if report, err := st.BulkSave(context.Background(), docs, false); err != nil || len(report.Failed) > 0 {
		t.Fatalf("seed: %v %+v", err, report.Failed)
	}

	svcs := service.New(st, config.Stats{Units: []string{"Karl1", "Karl2", "Karl3"}, EnergyUnit: "kWh"})
	svcs.Statistics.SetClock(func() time.Time { return clock })
	return svcs
}

func run(t *testing.T, svcs *service.Services, typ string) *service.Report {
	t.Helper()
	rep, err := svcs.Statistics.Run(context.Background(), typ)
	if err != nil {
		t.Fatalf("Run(%s): %v", typ, err)
	}
	return rep
}

func expect(t *testing.T, row service.Row, want map[string]float64) {
	t.Helper()
	for unit, v := range want {
		if row.Values[unit] != v {
			t.Errorf("%s/%s = %v, want %v", row.Label, unit, row.Values[unit], v)
		}
	}
}

func TestStatistics_Total(t *testing.T) {
	rep := run(t, seeded(t), "")
	if rep.Type != service.StatTotal || len(rep.Rows) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	expect(t, rep.Rows[0], map[string]float64{"Karl1": 14.5, "Karl2": 104, "Karl3": 0})
}

func TestStatistics_Yesterday(t *testing.T) {
	rep := run(t, seeded(t), service.StatYesterday)
	if len(rep.Rows) != 24 {
		t.Fatalf("got %d rows, want 24", len(rep.Rows))
	}
	if rep.Rows[8].Label != "08:00" {
		t.Errorf("label = %q", rep.Rows[8].Label)
	}
	expect(t, rep.Rows[8], map[string]float64{"Karl1": 1.5, "Karl2": 4})
	expect(t, rep.Rows[9], map[string]float64{"Karl1": 2, "Karl2": 0})
	expect(t, rep.Rows[10], map[string]float64{"Karl1": 0})
}

func TestStatistics_Weekly(t *testing.T) {
	rep := run(t, seeded(t), service.StatWeekly)
	if len(rep.Rows) != 7 || rep.Rows[0].Label != "04.03.2021" || rep.Rows[6].Label != "10.03.2021" {
		t.Fatalf("rows = %+v", rep.Rows)
	}
	expect(t, rep.Rows[5], map[string]float64{"Karl1": 3.5, "Karl2": 4})
	expect(t, rep.Rows[6], map[string]float64{"Karl1": 1})
}

func TestStatistics_Monthly(t *testing.T) {
	rep := run(t, seeded(t), service.StatMonthly)
	if len(rep.Rows) != 12 || rep.Rows[0].Label != "January" {
		t.Fatalf("rows = %+v", rep.Rows)
	}
	expect(t, rep.Rows[0], map[string]float64{"Karl1": 10})
	expect(t, rep.Rows[2], map[string]float64{"Karl1": 4.5, "Karl2": 4})
	expect(t, rep.Rows[5], map[string]float64{"Karl2": 0})
}

func TestStatistics_Year(t *testing.T) {
	rep := run(t, seeded(t), service.StatYear)
	if len(rep.Rows) != 2 || rep.Rows[0].Label != "2020" || rep.Rows[1].Label != "2021" {
		t.Fatalf("rows = %+v", rep.Rows)
	}
	expect(t, rep.Rows[0], map[string]float64{"Karl2": 100, "Karl1": 0})
	expect(t, rep.Rows[1], map[string]float64{"Karl1": 14.5, "Karl2": 4})
}

func TestStatistics_ByKeys(t *testing.T) {
	svcs := seeded(t)
	rows, err := svcs.Statistics.ByKeys(context.Background(), []any{[]any{"Karl1", 2021, 3, 9, 8}})
	if err != nil {
		t.Fatalf("ByKeys: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != 1.5 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestErrors_LatestAndGet(t *testing.T) {
	svcs := seeded(t)
	ctx := context.Background()

	items, err := svcs.Errors.Latest(ctx, 0, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("Latest = %v, %v", items, err)
	}
	alert := items[0].(map[string]any)
	if alert["reason"] != "Fehlercode 5" || alert["_id"] == "" {
		t.Errorf("alert = %v", alert)
	}

	doc, err := svcs.Errors.Get(ctx, alert["_id"].(string))
	if err != nil || doc.Type() != domain.TypeError {
		t.Errorf("Get = %+v, %v", doc, err)
	}

	between, err := svcs.Errors.Between(ctx, "2021-03-10T00:00:00.000Z", "2021-03-11T00:00:00.000Z", 0, 0)
	if err != nil || len(between) != 1 {
		t.Errorf("Between = %v, %v", between, err)
	}
	none, err := svcs.Errors.Between(ctx, "2020-01-01T00:00:00.000Z", "2020-12-31T00:00:00.000Z", 0, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("Between (empty) = %v, %v", none, err)
	}

	openEnded := []struct {
		from, to string
		want     int
	}{
		{"2021-03-10T00:00:00.000Z", "", 1},
		{"2021-03-11T00:00:00.000Z", "", 0},
		{"", "2021-03-11T00:00:00.000Z", 1},
		{"", "2021-03-09T00:00:00.000Z", 0},
		{"", "", 1},
	}
	for _, tt := range openEnded {
		got, err := svcs.Errors.Between(ctx, tt.from, tt.to, 0, 0)
		if err != nil || len(got) != tt.want {
			t.Errorf("Between(%q, %q) = %d items, %v; want %d", tt.from, tt.to, len(got), err, tt.want)
		}
	}
}

func TestErrors_GetRejectsOtherTypes(t *testing.T) {
	st := store.New(store.NewMemoryBackend(), 0, service.Designs("kWh")...)
	d, err := st.Save(context.Background(), reading("Karl1", clock, 1))
	if err != nil {
		t.Fatal(err)
	}
	svcs := service.New(st, config.Stats{})
	if _, err := svcs.Errors.Get(context.Background(), d.ID); !domain.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}
