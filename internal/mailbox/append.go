package mailbox

import (
	"bytes"
	"context"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// Append opens a short-lived session and stores the given raw messages in
// the configured mailbox, unseen.
func Append(cfg config.Mailbox, messages ...[]byte) error {
	c, _, err := dial(context.Background(), cfg)
	if err != nil {
		return domain.ConnectionError("dial", err)
	}
	defer c.Logout()
	c.Timeout = cfg.CommandTimeout

	if err := c.Login(cfg.User, cfg.Password); err != nil {
		return domain.ConnectionError("login", err)
	}
	for _, raw := range messages {
		if err := c.Append(cfg.Name, nil, time.Now(), bytes.NewBuffer(raw)); err != nil {
			return domain.ConnectionError("append", err)
		}
	}
	return nil
}

