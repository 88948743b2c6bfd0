// Package mailbox holds the IMAP connection the ingestion runs on.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/ingest"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Ready
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	default:
		return "disconnected"
	}
}

var ErrNotReady = errors.New("mailbox not ready")

// Status is a snapshot of the watcher.
type Status struct {
	State       State
	ConnectedAt time.Time
	Sessions    int
	LastError   error
}

type command struct {
	fn   func(c *client.Client) error
	done chan error
}

// Watcher keeps one IMAP session open and idles on the selected mailbox.
// OnReady runs after every successful login and select, OnNewMail whenever
// the server announces new messages. Both must not block.
type Watcher struct {
	cfg       config.Mailbox
	OnReady   func()
	OnNewMail func()

	state atomic.Int32
	cmds  chan command

	mu     sync.Mutex
	status Status
}

var _ ingest.Mailbox = (*Watcher)(nil)

func New(cfg config.Mailbox) *Watcher {
	return &Watcher{
		cfg:       cfg,
		OnReady:   func() {},
		OnNewMail: func() {},
		cmds:      make(chan command),
	}
}

func (w *Watcher) State() State { return State(w.state.Load()) }

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.status
	st.State = w.State()
	return st
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
}

// Run connects and reconnects until ctx is cancelled. Connection failures
// are logged and never returned.
func (w *Watcher) Run(ctx context.Context) {
	for {
		w.setState(Connecting)
		err := w.session(ctx)
		w.setState(Disconnected)
		if ctx.Err() != nil {
			log.Info().Msg("mailbox watcher stopped")
			return
		}

		w.mu.Lock()
		w.status.LastError = err
		w.mu.Unlock()
		log.Warn().Err(err).Str("addr", w.cfg.Addr()).Msg("mailbox connection lost; reconnecting")

		if w.cfg.ReconnectDelay > 0 {
			select {
			case <-time.After(w.cfg.ReconnectDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// dial returns the client together with its connection, whose deadline
// the session manages around IDLE.
func dial(ctx context.Context, cfg config.Mailbox) (*client.Client, net.Conn, error) {
	dialer := &net.Dialer{Timeout: cfg.CommandTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, nil, err
	}
	if cfg.TLS {
		conn = tls.Client(conn, &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		})
	}
	if cfg.CommandTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.CommandTimeout))
	}
	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return c, conn, nil
}

func (w *Watcher) session(ctx context.Context) error {
	c, conn, err := dial(ctx, w.cfg)
	if err != nil {
		return domain.ConnectionError("dial", err)
	}
	defer func() {
		select {
		case <-c.LoggedOut():
		default:
			c.Timeout = w.cfg.CommandTimeout
			if err := c.Logout(); err != nil {
				_ = c.Terminate()
			}
		}
	}()
	c.Timeout = w.cfg.CommandTimeout

	updates := make(chan client.Update, 16)
	newMail := make(chan struct{}, 1)
	c.Updates = updates
	go func() {
		for {
			select {
			case u := <-updates:
				if _, ok := u.(*client.MailboxUpdate); ok {
					select {
					case newMail <- struct{}{}:
					default:
					}
				}
			case <-c.LoggedOut():
				return
			}
		}
	}()

	if err := c.Login(w.cfg.User, w.cfg.Password); err != nil {
		return domain.ConnectionError("login", err)
	}
	if _, err := c.Select(w.cfg.Name, false); err != nil {
		return domain.ConnectionError("select", err)
	}
	select {
	case <-newMail:
	default:
	}

	w.mu.Lock()
	w.status.ConnectedAt = time.Now()
	w.status.Sessions++
	w.mu.Unlock()
	w.setState(Ready)
	log.Info().Str("addr", w.cfg.Addr()).Str("mailbox", w.cfg.Name).Msg("mailbox ready")
	w.OnReady()

	for {
		// IDLE holds the connection open without a deadline; every other
		// command runs under CommandTimeout.
		c.Timeout = 0
		if err := conn.SetDeadline(time.Time{}); err != nil {
			return domain.ConnectionError("idle", err)
		}
		stop := make(chan struct{})
		idleDone := make(chan error, 1)
		go func() { idleDone <- c.Idle(stop, nil) }()

		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			return ctx.Err()
		case err := <-idleDone:
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return domain.ConnectionError("idle", err)
		case <-c.LoggedOut():
			close(stop)
			<-idleDone
			return domain.ConnectionError("idle", errors.New("server closed the connection"))
		case <-newMail:
			close(stop)
			if err := <-idleDone; err != nil {
				return domain.ConnectionError("idle", err)
			}
			log.Debug().Msg("new mail announced")
			w.OnNewMail()
		case cmd := <-w.cmds:
			close(stop)
			if err := <-idleDone; err != nil {
				cmd.done <- domain.ConnectionError("idle", err)
				return domain.ConnectionError("idle", err)
			}
			c.Timeout = w.cfg.CommandTimeout
			cmd.done <- cmd.fn(c)
		}
	}
}

// do runs fn on the session goroutine once it has left IDLE.
func (w *Watcher) do(ctx context.Context, fn func(c *client.Client) error) error {
	if w.State() != Ready {
		return domain.ConnectionError("mailbox", ErrNotReady)
	}
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case w.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	// A command that was handed over always completes; its own timeout
	// bounds it.
	return <-cmd.done
}

// FetchUnseen fetches every message without the seen flag. Unless
// markSeen is set the bodies are peeked, leaving the flag untouched.
func (w *Watcher) FetchUnseen(ctx context.Context, markSeen bool, fn func(ingest.FetchedMessage)) (int, error) {
	var n int
	err := w.do(ctx, func(c *client.Client) error {
		criteria := imap.NewSearchCriteria()
		criteria.WithoutFlags = []string{imap.SeenFlag}
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return domain.ConnectionError("search", err)
		}
		if len(uids) == 0 {
			return nil
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)
		section := &imap.BodySectionName{Peek: !markSeen}
		items := []imap.FetchItem{imap.FetchUid, imap.FetchBodyStructure, section.FetchItem()}

		messages := make(chan *imap.Message, 16)
		done := make(chan error, 1)
		go func() { done <- c.UidFetch(seqset, items, messages) }()

		for msg := range messages {
			body := msg.GetBody(section)
			if body == nil {
				log.Warn().Uint32("uid", msg.Uid).Msg("server returned no body")
				continue
			}
			raw, err := io.ReadAll(body)
			if err != nil {
				log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("read message body failed")
				continue
			}
			if bs := msg.BodyStructure; bs != nil {
				log.Debug().Uint32("uid", msg.Uid).Str("mime", bs.MIMEType+"/"+bs.MIMESubType).
					Int("parts", len(bs.Parts)).Int("size", len(raw)).Msg("fetched message")
			}
			n++
			fn(ingest.FetchedMessage{UID: msg.Uid, SeqNum: msg.SeqNum, Raw: raw})
		}
		if err := <-done; err != nil {
			return domain.ConnectionError("fetch", err)
		}
		return nil
	})
	return n, err
}

// MarkSeen adds the seen flag to uids.
func (w *Watcher) MarkSeen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	return w.do(ctx, func(c *client.Client) error {
		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)
		flags := []interface{}{imap.SeenFlag}
		if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return domain.ConnectionError("store flags", err)
		}
		return nil
	})
}
