package store

import (
	"context"
	"net/http"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// Bulk error codes reported per document.
const (
	CodeConflict   = "conflict"
	CodeBadRequest = "bad_request"
	ReasonConflict = "Document update conflict."
)

// WriteResult is the per-document outcome of a backend write. Error is
// empty on success.
type WriteResult struct {
	ID     string
	Rev    string
	Error  string
	Reason string
}

// Backend is the wire surface a Store runs on.
//
// Put and PutMany follow the same rules: a document without Rev is a
// create (conflict when the id exists, fresh id when ID is empty), a
// document with Rev replaces the stored copy only if Rev is current.
// Failures of individual documents are reported in the results of PutMany;
// only a failure of the whole call is returned as an error.
type Backend interface {
	Get(ctx context.Context, id string) (*Document, error)
	GetMany(ctx context.Context, ids []string) ([]*Document, error)
	Put(ctx context.Context, doc *Document) (WriteResult, error)
	PutMany(ctx context.Context, docs []*Document) ([]WriteResult, error)
	Delete(ctx context.Context, id, rev string) error
	// ListByType returns every document of the given type, or all
	// documents when docType is empty.
	ListByType(ctx context.Context, docType string) ([]*Document, error)
}

// WindowedBackend is implemented by backends that can restrict a type
// listing to a time window. Documents without a time are always listed.
type WindowedBackend interface {
	ListByTypeWithin(ctx context.Context, docType string, w Window) ([]*Document, error)
}

// ErrNotFound is the store's answer for a missing document.
func ErrNotFound() *domain.Error {
	return domain.DatabaseError(http.StatusNotFound, "missing")
}

// ErrConflict is the store's answer for a stale or duplicate write.
func ErrConflict() *domain.Error {
	return domain.DatabaseError(http.StatusConflict, ReasonConflict)
}
