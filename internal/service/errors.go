package service

import (
	"context"
	"net/http"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

// DefaultErrorPage is the number of alerts listed when no limit is given.
const DefaultErrorPage = 20

type ErrorService struct {
	store *store.Store
}

// Latest lists stored alerts, newest first.
func (s *ErrorService) Latest(ctx context.Context, offset, limit int) ([]any, error) {
	if limit <= 0 {
		limit = DefaultErrorPage
	}
	return s.store.GetDocumentsByType(ctx, offset, limit, true, nil, ErrorDesign, ErrorsByDate)
}

// Between lists alerts raised in [from, to], newest first. Either end may
// be empty.
func (s *ErrorService) Between(ctx context.Context, from, to string, offset, limit int) ([]any, error) {
	if limit <= 0 {
		limit = DefaultErrorPage
	}
	return s.store.GetDocumentsByQuery(ctx, offset, limit, true, bound(from), bound(to), ErrorDesign, ErrorsByDate)
}

// bound leaves the range open on a side given as "".
func bound(key string) any {
	if key == "" {
		return nil
	}
	return key
}

// Get returns one alert. Documents of any other type are reported missing.
func (s *ErrorService) Get(ctx context.Context, id string) (*store.Document, error) {
	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Type() != domain.TypeError {
		return nil, domain.DatabaseError(http.StatusNotFound, "missing")
	}
	return doc, nil
}
