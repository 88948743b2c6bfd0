// Package ingest schedules mailbox scans and runs every fetched message
// through decoding, extraction and persistence.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
)

// Scheduler runs at most one mailbox scan at a time. A scan holds the
// guard until the fetch has completed and every message it delivered has
// been processed.
type Scheduler struct {
	ctx       context.Context
	mailbox   Mailbox
	processor Processor
	cfg       config.Ingest

	guard     chan struct{}
	afterFunc func(time.Duration, func()) *time.Timer
	scans     atomic.Int64
}

func NewScheduler(ctx context.Context, mb Mailbox, p Processor, cfg config.Ingest) *Scheduler {
	return &Scheduler{
		ctx:       ctx,
		mailbox:   mb,
		processor: p,
		cfg:       cfg,
		guard:     make(chan struct{}, 1),
		afterFunc: time.AfterFunc,
	}
}

// RequestScan starts a scan unless one is in flight, in which case the
// request is retried after the configured delay. It never blocks.
func (s *Scheduler) RequestScan() {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.guard <- struct{}{}:
	default:
		log.Debug().Dur("retry_in", s.cfg.ScanRetryDelay).Msg("scan in flight; request deferred")
		s.afterFunc(s.cfg.ScanRetryDelay, s.RequestScan)
		return
	}

	go func() {
		defer func() { <-s.guard }()
		s.scan()
	}()
}

// Busy reports whether a scan holds the guard.
func (s *Scheduler) Busy() bool { return len(s.guard) > 0 }

// Scans returns the number of scans started so far.
func (s *Scheduler) Scans() int64 { return s.scans.Load() }

func (s *Scheduler) scan() {
	s.scans.Add(1)
	ctx := s.ctx
	if s.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScanTimeout)
		defer cancel()
	}

	var (
		wg       conc.WaitGroup
		mu       sync.Mutex
		complete []uint32
		failed   int
	)
	n, err := s.mailbox.FetchUnseen(ctx, s.cfg.MarkSeenOnFetch, func(msg FetchedMessage) {
		wg.Go(func() {
			out := s.processor.Process(ctx, msg)
			mu.Lock()
			defer mu.Unlock()
			if out.Complete() {
				complete = append(complete, msg.UID)
			} else {
				failed++
			}
		})
	})
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Err(r.AsError()).Msg("message processing panicked")
	}
	if err != nil {
		log.Error().Err(err).Msg("mailbox scan failed")
	}
	if n == 0 {
		if err == nil {
			log.Debug().Msg("nothing to do")
		}
		return
	}

	if !s.cfg.MarkSeenOnFetch && len(complete) > 0 {
		if err := s.mailbox.MarkSeen(ctx, complete); err != nil {
			log.Error().Err(err).Int("messages", len(complete)).Msg("marking messages seen failed")
		}
	}
	log.Info().Int("fetched", n).Int("incomplete", failed).Msg("done fetching all messages")
}
