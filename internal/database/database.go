package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT        PRIMARY KEY,
	rev        TEXT        NOT NULL,
	doc_type   TEXT        NOT NULL DEFAULT '',
	body       JSONB       NOT NULL,
	ts         TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE documents ADD COLUMN IF NOT EXISTS ts TIMESTAMPTZ;
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents (doc_type);
CREATE INDEX IF NOT EXISTS idx_documents_type_ts ON documents (doc_type, ts);
`

// Connect opens the pool, checks connectivity and ensures the documents
// table exists.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("database connected")
	return db, nil
}

// Migrate creates the schema if it is missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	return nil
}
