// Package store persists revisioned documents with optimistic concurrency
// and answers named view queries over them.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// Store is the document store handle. It is built once at process start
// and shared by every component that reads or writes documents.
type Store struct {
	backend Backend
	designs map[string]Design
	timeout time.Duration
}

// New returns a Store over backend. A zero timeout disables the per-call
// deadline.
func New(backend Backend, timeout time.Duration, designs ...Design) *Store {
	s := &Store{
		backend: backend,
		designs: make(map[string]Design, len(designs)),
		timeout: timeout,
	}
	for _, d := range designs {
		s.designs[d.Name] = d
	}
	return s
}

// BulkFailure is a document the batch write rejected.
type BulkFailure struct {
	Document    *Document
	ErrorCode   string
	ErrorReason string
}

// BulkReport splits a batch write into per-document outcomes.
type BulkReport struct {
	Succeeded []*Document
	Failed    []BulkFailure
}

func (s *Store) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// dbError keeps store errors in the uniform database shape.
func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *domain.Error
	if errors.As(err, &e) && e.Kind == domain.KindDatabase {
		return e
	}
	return domain.TransportError(op, err)
}

// GetByID fetches one document.
func (s *Store) GetByID(ctx context.Context, id string) (*Document, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	doc, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, dbError("get", err)
	}
	return doc, nil
}

// GetByIDs fetches several documents. Ids that cannot be fetched are left
// out of the result without further notice.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]*Document, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	docs, err := s.backend.GetMany(ctx, ids)
	if err != nil {
		return []*Document{}, dbError("get many", err)
	}
	return docs, nil
}

// Save always creates: any revision on doc is discarded first. On success
// the assigned id and revision are stamped onto doc.
func (s *Store) Save(ctx context.Context, doc *Document) (*Document, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	doc.Rev = ""
	res, err := s.backend.Put(ctx, doc)
	if err != nil {
		return nil, dbError("save", err)
	}
	doc.ID, doc.Rev = res.ID, res.Rev
	return doc, nil
}

// Update writes doc over its stored copy. Without a revision the current
// one is fetched first; a missing document turns the update into a create.
// A concurrent writer between that read and the write surfaces as a
// conflict, which is returned as is.
func (s *Store) Update(ctx context.Context, doc *Document) (*Document, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	if doc.Rev == "" && doc.ID != "" {
		current, err := s.backend.Get(ctx, doc.ID)
		switch {
		case err == nil:
			doc.Rev = current.Rev
		case domain.IsNotFound(err):
		default:
			return nil, dbError("update", err)
		}
	}

	res, err := s.backend.Put(ctx, doc)
	if err != nil {
		return nil, dbError("update", err)
	}
	doc.ID, doc.Rev = res.ID, res.Rev
	return doc, nil
}

// BulkSave writes docs in one batch. Unless reuseRevisions is set, the
// batch is create-only. Rejected documents are reported in the Failed list;
// an error is returned only when the batch as a whole could not be written.
func (s *Store) BulkSave(ctx context.Context, docs []*Document, reuseRevisions bool) (BulkReport, error) {
	report := BulkReport{Succeeded: []*Document{}}
	if len(docs) == 0 {
		return report, nil
	}
	if !reuseRevisions {
		for _, d := range docs {
			d.Rev = ""
		}
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	results, err := s.backend.PutMany(ctx, docs)
	if err != nil {
		return report, dbError("bulk save", err)
	}
	if len(results) != len(docs) {
		return report, domain.DatabaseError(http.StatusInternalServerError,
			fmt.Sprintf("bulk save: %d results for %d documents", len(results), len(docs)))
	}

	for i, res := range results {
		doc := docs[i]
		if res.Error != "" {
			report.Failed = append(report.Failed, BulkFailure{Document: doc, ErrorCode: res.Error, ErrorReason: res.Reason})
			continue
		}
		doc.ID, doc.Rev = res.ID, res.Rev
		report.Succeeded = append(report.Succeeded, doc)
	}
	return report, nil
}

// Remove deletes doc by id and revision and returns the resulting status.
func (s *Store) Remove(ctx context.Context, doc *Document) (int, error) {
	if doc.ID == "" {
		return http.StatusBadRequest, domain.DatabaseError(http.StatusBadRequest, "missing document id")
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	if err := s.backend.Delete(ctx, doc.ID, doc.Rev); err != nil {
		err = dbError("remove", err)
		return domain.StatusCode(err), err
	}
	return http.StatusOK, nil
}

// Query runs a named view.
func (s *Store) Query(ctx context.Context, design, view string, q ViewQuery) ([]ViewRow, error) {
	d, ok := s.designs[design]
	if !ok {
		return []ViewRow{}, domain.DatabaseError(http.StatusNotFound, "missing design "+design)
	}
	v, err := d.view(view)
	if err != nil {
		return []ViewRow{}, err
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	docs, err := s.list(ctx, v, q)
	if err != nil {
		return []ViewRow{}, dbError("query", err)
	}
	rows, err := runView(docs, v, q)
	if err != nil {
		return []ViewRow{}, err
	}
	return rows, nil
}

// list loads the documents a query can touch, narrowed to the view's time
// window when both the view and the backend support it.
func (s *Store) list(ctx context.Context, v View, q ViewQuery) ([]*Document, error) {
	wb, ok := s.backend.(WindowedBackend)
	if !ok || v.Window == nil || len(q.Keys) > 0 {
		return s.backend.ListByType(ctx, v.DocType)
	}
	start, end := normalizeKey(q.StartKey), normalizeKey(q.EndKey)
	if q.Descending {
		start, end = end, start
	}
	w, ok := v.Window(start, end)
	if !ok {
		return s.backend.ListByType(ctx, v.DocType)
	}
	return wb.ListByTypeWithin(ctx, v.DocType, w)
}

func values(rows []ViewRow) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Value
	}
	return out
}

// GetDocumentsByType lists the values of a view, optionally restricted to
// keys.
func (s *Store) GetDocumentsByType(ctx context.Context, offset, limit int, descending bool, keys []any, design, view string) ([]any, error) {
	rows, err := s.Query(ctx, design, view, ViewQuery{
		Keys:       keys,
		Skip:       offset,
		Limit:      limit,
		Descending: descending,
	})
	if err != nil {
		return []any{}, err
	}
	return values(rows), nil
}

// GetDocumentsByQuery lists the values of a view between startkey and
// endkey. The range is given in ascending terms; it is flipped for
// descending order.
func (s *Store) GetDocumentsByQuery(ctx context.Context, offset, limit int, descending bool, startkey, endkey any, design, view string) ([]any, error) {
	if descending {
		startkey, endkey = endkey, startkey
	}
	rows, err := s.Query(ctx, design, view, ViewQuery{
		StartKey:   startkey,
		EndKey:     endkey,
		Skip:       offset,
		Limit:      limit,
		Descending: descending,
	})
	if err != nil {
		return nil, err
	}
	return values(rows), nil
}

// GetReport reduces a view over a key range at the given group level.
func (s *Store) GetReport(ctx context.Context, offset, limit int, startkey, endkey any, design, view string, groupLevel int) ([]ViewRow, error) {
	return s.Query(ctx, design, view, ViewQuery{
		StartKey:   startkey,
		EndKey:     endkey,
		Skip:       offset,
		Limit:      limit,
		Reduce:     true,
		GroupLevel: groupLevel,
	})
}

// GetReportWithList is GetReport followed by the design's list function.
func (s *Store) GetReportWithList(ctx context.Context, offset, limit int, startkey, endkey any, design, view, list string, groupLevel int) ([]ViewRow, error) {
	fn, ok := s.designs[design].Lists[list]
	if !ok {
		return []ViewRow{}, domain.DatabaseError(http.StatusNotFound, fmt.Sprintf("missing list %s/%s", design, list))
	}
	rows, err := s.GetReport(ctx, offset, limit, startkey, endkey, design, view, groupLevel)
	if err != nil {
		return []ViewRow{}, err
	}
	return fn(rows), nil
}

// GetReportByKeys reduces a view for an explicit list of keys, one group
// per key.
func (s *Store) GetReportByKeys(ctx context.Context, offset, limit int, keys []any, design, view string, groupLevel int) ([]ViewRow, error) {
	return s.Query(ctx, design, view, ViewQuery{
		Keys:       keys,
		Skip:       offset,
		Limit:      limit,
		Reduce:     true,
		GroupLevel: groupLevel,
		Group:      true,
	})
}
