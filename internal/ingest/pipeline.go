package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/extract"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/message"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/notify"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

// Archiver keeps a copy of a raw message before it is processed.
type Archiver interface {
	ArchiveMessage(ctx context.Context, uid uint32, raw []byte) error
}

// Processor runs one fetched message end to end.
type Processor interface {
	Process(ctx context.Context, msg FetchedMessage) Outcome
}

// Outcome reports what processing a message produced. Err holds the
// first decode, extraction or database error; later stages still run
// where they do not depend on the failed one.
type Outcome struct {
	UID             uint32
	Subject         string
	TelemetrySaved  int
	TelemetryFailed int
	AlertSaved      bool
	Err             error
}

// Complete reports whether everything the message carried was stored.
func (o Outcome) Complete() bool {
	return o.Err == nil && o.TelemetryFailed == 0
}

func (o *Outcome) fail(err error) {
	if o.Err == nil {
		o.Err = err
	}
}

// Pipeline decodes a message, extracts telemetry and alerts, and stores
// the records.
type Pipeline struct {
	store    *store.Store
	pattern  *regexp.Regexp
	marker   string
	archiver Archiver
	notifier notify.Notifier
	now      func() time.Time
}

// NewPipeline builds the pipeline. archiver and notifier may be nil.
func NewPipeline(st *store.Store, cfg config.Ingest, archiver Archiver, notifier notify.Notifier) (*Pipeline, error) {
	pattern, err := regexp.Compile(cfg.AttachmentPattern)
	if err != nil {
		return nil, fmt.Errorf("attachment pattern: %w", err)
	}
	return &Pipeline{
		store:    st,
		pattern:  pattern,
		marker:   cfg.AlertMarker,
		archiver: archiver,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

func (p *Pipeline) Process(ctx context.Context, msg FetchedMessage) Outcome {
	out := Outcome{UID: msg.UID}
	logger := log.With().Uint32("uid", msg.UID).Logger()

	if p.archiver != nil {
		if err := p.archiver.ArchiveMessage(ctx, msg.UID, msg.Raw); err != nil {
			logger.Warn().Err(err).Msg("archive raw message failed")
		}
	}

	decoded, err := message.DecodeBytes(msg.Raw)
	if err != nil {
		logger.Error().Err(err).Msg("decode message failed")
		out.fail(err)
		return out
	}
	out.Subject = decoded.Subject
	logger = logger.With().Str("subject", decoded.Subject).Logger()

	for _, a := range decoded.AttachmentsMatching(p.pattern) {
		p.importTelemetry(ctx, &logger, a, &out)
	}
	if p.marker != "" && strings.Contains(decoded.Subject, p.marker) {
		p.importAlert(ctx, &logger, decoded.Text, &out)
	}

	ev := logger.Info()
	if out.Err != nil {
		ev = logger.Warn().Err(out.Err)
	}
	ev.Int("telemetry_saved", out.TelemetrySaved).
		Int("telemetry_failed", out.TelemetryFailed).
		Bool("alert_saved", out.AlertSaved).
		Msg("message processed")
	return out
}

func (p *Pipeline) importTelemetry(ctx context.Context, logger *zerolog.Logger, a message.Attachment, out *Outcome) {
	res, err := extract.ParseTelemetry(a.Content)
	if err != nil {
		logger.Error().Err(err).Str("filename", a.Filename).Msg("telemetry extraction failed")
		out.fail(err)
		return
	}

	docs := make([]*store.Document, len(res.Records))
	for i, rec := range res.Records {
		docs[i] = store.NewDocument(rec.Body())
	}
	report, err := p.store.BulkSave(ctx, docs, false)
	if err != nil {
		logger.Error().Err(err).Str("filename", a.Filename).Msg("telemetry import failed")
		out.fail(err)
		return
	}
	for _, f := range report.Failed {
		logger.Error().
			Str("filename", a.Filename).
			Str("error_code", f.ErrorCode).
			Str("reason", f.ErrorReason).
			Msg("telemetry record rejected")
	}
	out.TelemetrySaved += len(report.Succeeded)
	out.TelemetryFailed += len(report.Failed)
	logger.Info().
		Str("filename", a.Filename).
		Time("report_date", res.ReportDate).
		Int("records", len(res.Records)).
		Msg("telemetry imported")
}

func (p *Pipeline) importAlert(ctx context.Context, logger *zerolog.Logger, body string, out *Outcome) {
	res := extract.ParseAlert(body, p.now())
	if res.TimestampDefaulted {
		logger.Warn().Msg("alert has no usable point in time; using ingestion time")
	}

	if _, err := p.store.Save(ctx, store.NewDocument(res.Record.Body())); err != nil {
		logger.Error().Err(err).Msg("saving alert failed")
		out.fail(err)
		return
	}
	out.AlertSaved = true

	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyAlert(ctx, res.Record); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("alert notification failed")
	}
}
