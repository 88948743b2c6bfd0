package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/database"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

// OpenStore builds the process-wide store for the configured driver. The
// returned func releases the underlying connection.
func OpenStore(ctx context.Context, cfg config.Store, designs ...store.Design) (*store.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("using in-memory document store; data is lost on exit")
		return store.New(store.NewMemoryBackend(), cfg.Timeout, designs...), func() {}, nil
	case "postgres", "":
		db, err := database.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store.New(New(db), cfg.Timeout, designs...), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
