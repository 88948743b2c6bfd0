package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

var (
	_ store.Backend         = (*Documents)(nil)
	_ store.WindowedBackend = (*Documents)(nil)
)

// Documents is the Postgres backend of the document store. Revisions live
// in their own column; conditional statements enforce them.
type Documents struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Documents { return &Documents{db: db} }

type docRow struct {
	ID   string `db:"id"`
	Rev  string `db:"rev"`
	Body []byte `db:"body"`
}

func (r docRow) document() (*store.Document, error) {
	return store.DecodeBody(r.ID, r.Rev, r.Body)
}

func (d *Documents) Get(ctx context.Context, id string) (*store.Document, error) {
	var row docRow
	err := d.db.GetContext(ctx, &row, `SELECT id, rev, body FROM documents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return row.document()
}

func (d *Documents) GetMany(ctx context.Context, ids []string) ([]*store.Document, error) {
	out := []*store.Document{}
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT id, rev, body FROM documents WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var rows []docRow
	if err := d.db.SelectContext(ctx, &rows, d.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}

	byID := make(map[string]*store.Document, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			continue
		}
		byID[doc.ID] = doc
	}
	// Keep the caller's order.
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (d *Documents) Put(ctx context.Context, doc *store.Document) (store.WriteResult, error) {
	return put(ctx, d.db, doc)
}

// PutMany writes the batch inside one transaction. Conflicts do not abort
// the transaction: the conditional statements simply return no row.
func (d *Documents) PutMany(ctx context.Context, docs []*store.Document) ([]store.WriteResult, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	results := make([]store.WriteResult, len(docs))
	for i, doc := range docs {
		res, err := put(ctx, tx, doc)
		switch {
		case err == nil:
			results[i] = res
		case domain.IsConflict(err):
			results[i] = store.WriteResult{ID: doc.ID, Error: store.CodeConflict, Reason: store.ReasonConflict}
		default:
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return results, nil
}

func put(ctx context.Context, q sqlx.QueryerContext, doc *store.Document) (store.WriteResult, error) {
	body, err := store.EncodeBody(doc)
	if err != nil {
		return store.WriteResult{}, err
	}

	id := doc.ID
	if id == "" {
		id = store.NewID()
	}
	next := store.NextRevision(doc.Rev)

	// ts is the document time; rows without one are listed by every window.
	var ts sql.NullTime
	if t, ok := doc.Time(); ok {
		ts = sql.NullTime{Time: t, Valid: true}
	}

	var rev string
	if doc.Rev == "" {
		err = q.QueryRowxContext(ctx, `
			INSERT INTO documents (id, rev, doc_type, body, ts)
			VALUES ($1, $2, $3, $4::jsonb, $5)
			ON CONFLICT (id) DO NOTHING
			RETURNING rev`, id, next, doc.Type(), string(body), ts).Scan(&rev)
	} else {
		err = q.QueryRowxContext(ctx, `
			UPDATE documents
			SET rev = $3, doc_type = $4, body = $5::jsonb, ts = $6, updated_at = now()
			WHERE id = $1 AND rev = $2
			RETURNING rev`, id, doc.Rev, next, doc.Type(), string(body), ts).Scan(&rev)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.WriteResult{}, store.ErrConflict()
	}
	if err != nil {
		return store.WriteResult{}, fmt.Errorf("write document: %w", err)
	}
	return store.WriteResult{ID: id, Rev: rev}, nil
}

func (d *Documents) Delete(ctx context.Context, id, rev string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND rev = $2`, id, rev)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	var exists bool
	if err := d.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return store.ErrNotFound()
	}
	return store.ErrConflict()
}

func (d *Documents) ListByType(ctx context.Context, docType string) ([]*store.Document, error) {
	var rows []docRow
	err := d.db.SelectContext(ctx, &rows,
		`SELECT id, rev, body FROM documents WHERE $1::text = '' OR doc_type = $1::text ORDER BY id`, docType)
	if err != nil {
		return nil, fmt.Errorf("select documents by type: %w", err)
	}
	return decodeRows(rows)
}

// ListByTypeWithin filters on the ts column; zero window ends are open.
func (d *Documents) ListByTypeWithin(ctx context.Context, docType string, w store.Window) ([]*store.Document, error) {
	var rows []docRow
	err := d.db.SelectContext(ctx, &rows, `
		SELECT id, rev, body FROM documents
		WHERE ($1::text = '' OR doc_type = $1::text)
		  AND (ts IS NULL OR (
		       ($2::timestamptz IS NULL OR ts >= $2::timestamptz)
		   AND ($3::timestamptz IS NULL OR ts <  $3::timestamptz)))
		ORDER BY id`, docType, nullTime(w.From), nullTime(w.To))
	if err != nil {
		return nil, fmt.Errorf("select documents by window: %w", err)
	}
	return decodeRows(rows)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func decodeRows(rows []docRow) ([]*store.Document, error) {
	out := make([]*store.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
