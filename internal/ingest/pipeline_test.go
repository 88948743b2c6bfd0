package ingest_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/ingest"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/sample"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

type recordingArchiver struct {
	mu   sync.Mutex
	uids []uint32
}

func (a *recordingArchiver) ArchiveMessage(_ context.Context, uid uint32, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uids = append(a.uids, uid)
	return errors.New("bucket unavailable")
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.AlertRecord
	err    error
}

func (n *recordingNotifier) NotifyAlert(_ context.Context, alert domain.AlertRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func newPipeline(t *testing.T, archiver ingest.Archiver, notifier *recordingNotifier) (*ingest.Pipeline, *store.MemoryBackend) {
	t.Helper()
	backend := store.NewMemoryBackend()
	st := store.New(backend, 0)
	cfg := config.Ingest{AttachmentPattern: "int_kostal", AlertMarker: "Alarm:"}
	if notifier == nil {
		notifier = &recordingNotifier{}
	}
	p, err := ingest.NewPipeline(st, cfg, archiver, notifier)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, backend
}

func TestPipeline_Telemetry(t *testing.T) {
	archiver := &recordingArchiver{}
	p, backend := newPipeline(t, archiver, nil)

	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := []sample.Reading{
		{Time: day.Add(8 * time.Hour), Address: 1, Name: "Karl1", Serial: "A1", PowerW: 100, Energy: 0.5},
		{Time: day.Add(9 * time.Hour), Address: 1, Name: "Karl1", Serial: "A1", PowerW: 200, Energy: 1.5},
	}
	raw, err := sample.TelemetryMail(day, sample.CSV(day, readings))
	if err != nil {
		t.Fatal(err)
	}

	out := p.Process(context.Background(), ingest.FetchedMessage{UID: 7, Raw: raw})
	if out.Err != nil {
		t.Fatalf("Process: %v", out.Err)
	}
	if out.TelemetrySaved != 2 || out.TelemetryFailed != 0 || out.AlertSaved {
		t.Errorf("outcome = %+v", out)
	}
	if !out.Complete() {
		t.Error("outcome should be complete")
	}
	if len(archiver.uids) != 1 || archiver.uids[0] != 7 {
		t.Errorf("archived %v; archive failures must not stop processing", archiver.uids)
	}

	docs := allDocs(t, backend)
	if len(docs) != 2 {
		t.Fatalf("stored %d documents, want 2", len(docs))
	}
	for _, d := range docs {
		if d.Type() != domain.TypeSolarData {
			t.Errorf("type = %q", d.Type())
		}
		e := d.Fields["E-Tag"].(map[string]any)
		if e["unit"] != "kWh" {
			t.Errorf("E-Tag = %v", e)
		}
	}
}

func TestPipeline_Alert(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	p, backend := newPipeline(t, nil, notifier)

	at := time.Date(2021, 1, 1, 8, 0, 0, 0, time.UTC)
	raw, err := sample.AlarmMail(at, "Fehlercode 5")
	if err != nil {
		t.Fatal(err)
	}

	out := p.Process(context.Background(), ingest.FetchedMessage{UID: 3, Raw: raw})
	if out.Err != nil || !out.AlertSaved || out.TelemetrySaved != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Subject != sample.AlarmSubject {
		t.Errorf("subject = %q", out.Subject)
	}

	if len(notifier.alerts) != 1 || !notifier.alerts[0].Datetime.Equal(at) {
		t.Fatalf("notified %+v", notifier.alerts)
	}

	docs := allDocs(t, backend)
	if len(docs) != 1 {
		t.Fatalf("stored %d documents, want 1", len(docs))
	}
	d := docs[0]
	if d.Type() != domain.TypeError || d.Fields["datetime"] != "2021-01-01T08:00:00.000Z" {
		t.Errorf("alert doc = %+v", d.Fields)
	}
	reason := d.Fields["reason"].(string)
	if reason != "Fehlercode 5" || strings.Contains(reason, "Empfaenger") {
		t.Errorf("reason = %q", reason)
	}
}

func TestPipeline_DecodeError(t *testing.T) {
	p, backend := newPipeline(t, nil, nil)

	out := p.Process(context.Background(), ingest.FetchedMessage{UID: 1, Raw: []byte("this is not a header line\r\n\r\nbody")})
	if domain.KindOf(out.Err) != domain.KindDecode {
		t.Fatalf("err = %v, want decode error", out.Err)
	}
	if out.Complete() {
		t.Error("failed outcome reported complete")
	}
	if n := len(allDocs(t, backend)); n != 0 {
		t.Errorf("stored %d documents", n)
	}
}

func TestPipeline_ExtractionErrorKeepsAlert(t *testing.T) {
	p, backend := newPipeline(t, nil, nil)

	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	raw, err := sample.TelemetryMail(day, []byte(";s;Pac\n;;kWh\n08:00:00;1;2\n"))
	if err != nil {
		t.Fatal(err)
	}
	raw = []byte(strings.Replace(string(raw), "Subject: Tagesbericht", "Subject: Alarm: Tagesbericht", 1))

	out := p.Process(context.Background(), ingest.FetchedMessage{UID: 2, Raw: raw})
	if domain.KindOf(out.Err) != domain.KindExtraction {
		t.Fatalf("err = %v, want extraction error", out.Err)
	}
	if !out.AlertSaved {
		t.Error("alert stage should still run")
	}
	if n := len(allDocs(t, backend)); n != 1 {
		t.Errorf("stored %d documents, want the alert only", n)
	}
}

func TestNewPipeline_BadPattern(t *testing.T) {
	st := store.New(store.NewMemoryBackend(), 0)
	if _, err := ingest.NewPipeline(st, config.Ingest{AttachmentPattern: "("}, nil, nil); err == nil {
		t.Fatal("expected an error for an invalid pattern")
	}
}

func allDocs(t *testing.T, backend *store.MemoryBackend) []*store.Document {
	t.Helper()
	docs, err := backend.ListByType(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return docs
}
