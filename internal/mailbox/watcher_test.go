package mailbox_test

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/ingest"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/mailbox"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/message"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/sample"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// startServer runs an in-process IMAP server on the memory backend, which
// knows the user "username" / "password".
func startServer(t *testing.T) config.Mailbox {
	t.Helper()

	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return config.Mailbox{
		Host:           "127.0.0.1",
		Port:           p,
		User:           "username",
		Password:       "password",
		Name:           "INBOX",
		TLS:            false,
		CommandTimeout: 5 * time.Second,
	}
}

func sampleMails(t *testing.T) [][]byte {
	t.Helper()
	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	export := sample.CSV(day, []sample.Reading{
		{Time: day.Add(8 * time.Hour), Address: 1, Name: "Karl1", Serial: "A1", PowerW: 100, Energy: 0.5},
		{Time: day.Add(9 * time.Hour), Address: 1, Name: "Karl1", Serial: "A1", PowerW: 300, Energy: 1},
	})
	telemetry, err := sample.TelemetryMail(day, export)
	if err != nil {
		t.Fatal(err)
	}
	alarm, err := sample.AlarmMail(day.Add(10*time.Hour), "Fehlercode 5")
	if err != nil {
		t.Fatal(err)
	}
	return [][]byte{telemetry, alarm}
}

// runWatcher starts w and waits until it is ready.
func runWatcher(t *testing.T, w *mailbox.Watcher) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ready := make(chan struct{})
	var once sync.Once
	onReady := w.OnReady
	w.OnReady = func() {
		once.Do(func() { close(ready) })
		onReady()
	}
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher not ready: %+v", w.Status())
	}
	return ctx
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestWatcher_FetchUnseenAndMarkSeen(t *testing.T) {
	cfg := startServer(t)
	if err := mailbox.Append(cfg, sampleMails(t)...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	w := mailbox.New(cfg)
	ctx := runWatcher(t, w)

	if w.State() != mailbox.Ready {
		t.Errorf("state = %v, want ready", w.State())
	}
	if st := w.Status(); st.Sessions != 1 || st.ConnectedAt.IsZero() {
		t.Errorf("status = %+v", st)
	}

	var (
		uids     []uint32
		subjects = map[string]bool{}
	)
	n, err := w.FetchUnseen(ctx, false, func(m ingest.FetchedMessage) {
		uids = append(uids, m.UID)
		msg, err := message.DecodeBytes(m.Raw)
		if err != nil {
			t.Errorf("decode uid %d: %v", m.UID, err)
			return
		}
		subjects[msg.Subject] = true
	})
	if err != nil {
		t.Fatalf("FetchUnseen: %v", err)
	}
	if n != len(uids) || n < 2 {
		t.Fatalf("fetched %d messages (%v)", n, uids)
	}
	if !subjects[sample.AlarmSubject] || !subjects["Tagesbericht 01.01.2021"] {
		t.Errorf("subjects = %v", subjects)
	}

	if err := w.MarkSeen(ctx, uids); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	n, err = w.FetchUnseen(ctx, false, func(ingest.FetchedMessage) {})
	if err != nil || n != 0 {
		t.Errorf("second fetch = %d, %v; want nothing left", n, err)
	}
}

func TestWatcher_IdleOutlivesCommandTimeout(t *testing.T) {
	cfg := startServer(t)
	cfg.CommandTimeout = 300 * time.Millisecond
	if err := mailbox.Append(cfg, sampleMails(t)...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	w := mailbox.New(cfg)
	ctx := runWatcher(t, w)

	time.Sleep(5 * cfg.CommandTimeout)

	if st := w.Status(); st.Sessions != 1 || st.State != mailbox.Ready || st.LastError != nil {
		t.Fatalf("status after idling = %+v", st)
	}
	n, err := w.FetchUnseen(ctx, false, func(ingest.FetchedMessage) {})
	if err != nil || n < 2 {
		t.Errorf("FetchUnseen after idling = %d, %v", n, err)
	}

	time.Sleep(5 * cfg.CommandTimeout)
	if st := w.Status(); st.Sessions != 1 {
		t.Errorf("sessions = %d after a command and more idling", st.Sessions)
	}
}

func TestWatcher_NotReady(t *testing.T) {
	w := mailbox.New(config.Mailbox{Host: "127.0.0.1", Port: 1})
	_, err := w.FetchUnseen(context.Background(), true, func(ingest.FetchedMessage) {})
	if !errors.Is(err, mailbox.ErrNotReady) || domain.KindOf(err) != domain.KindConnection {
		t.Errorf("err = %v, want not ready connection error", err)
	}
}

func TestWatcher_ReconnectsUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	w := mailbox.New(config.Mailbox{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		CommandTimeout: time.Second,
		ReconnectDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for w.Status().LastError == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if domain.KindOf(w.Status().LastError) != domain.KindConnection {
		t.Errorf("last error = %v", w.Status().LastError)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if w.State() != mailbox.Disconnected {
		t.Errorf("state = %v after stop", w.State())
	}
}

func TestWatcher_EndToEnd(t *testing.T) {
	cfg := startServer(t)
	if err := mailbox.Append(cfg, sampleMails(t)...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	backend := store.NewMemoryBackend()
	st := store.New(backend, 0)
	ingestCfg := config.Ingest{
		ScanRetryDelay:    20 * time.Millisecond,
		ScanTimeout:       10 * time.Second,
		MarkSeenOnFetch:   false,
		AttachmentPattern: "int_kostal",
		AlertMarker:       "Alarm:",
	}
	pipeline, err := ingest.NewPipeline(st, ingestCfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := mailbox.New(cfg)
	scheduler := ingest.NewScheduler(ctx, w, pipeline, ingestCfg)
	w.OnReady = scheduler.RequestScan
	w.OnNewMail = scheduler.RequestScan
	runWatcher(t, w)

	deadline := time.Now().Add(5 * time.Second)
	for (scheduler.Scans() == 0 || scheduler.Busy()) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	solar, _ := backend.ListByType(ctx, domain.TypeSolarData)
	alerts, _ := backend.ListByType(ctx, domain.TypeError)
	if len(solar) != 2 || len(alerts) != 1 {
		t.Fatalf("stored %d telemetry / %d alert documents, want 2 / 1", len(solar), len(alerts))
	}

	n, err := w.FetchUnseen(ctx, false, func(ingest.FetchedMessage) {})
	if err != nil || n != 0 {
		t.Errorf("unseen after scan = %d, %v; processed mails should be marked seen", n, err)
	}
}
