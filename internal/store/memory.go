package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

var (
	_ Backend         = (*MemoryBackend)(nil)
	_ WindowedBackend = (*MemoryBackend)(nil)
)

type memDoc struct {
	rev     string
	docType string
	body    []byte
}

// MemoryBackend keeps documents in process memory. Bodies are stored
// encoded, so reads see the same value types a database round trip gives.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]memDoc
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]memDoc)}
}

func (m *MemoryBackend) Get(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound()
	}
	return DecodeBody(id, d.rev, d.body)
}

func (m *MemoryBackend) GetMany(ctx context.Context, ids []string) ([]*Document, error) {
	out := make([]*Document, 0, len(ids))
	for _, id := range ids {
		doc, err := m.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, doc *Document) (WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.put(doc)
	if err != nil {
		return WriteResult{}, err
	}
	return res, nil
}

func (m *MemoryBackend) PutMany(_ context.Context, docs []*Document) ([]WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]WriteResult, len(docs))
	for i, doc := range docs {
		res, err := m.put(doc)
		if err != nil {
			results[i] = WriteResult{ID: doc.ID, Error: CodeConflict, Reason: ReasonConflict}
			if !domain.IsConflict(err) {
				results[i].Error, results[i].Reason = CodeBadRequest, err.Error()
			}
			continue
		}
		results[i] = res
	}
	return results, nil
}

// put applies the create/replace rules; callers hold the lock.
func (m *MemoryBackend) put(doc *Document) (WriteResult, error) {
	id := doc.ID
	if id == "" {
		id = NewID()
	}
	current, exists := m.docs[id]
	switch {
	case doc.Rev == "" && exists:
		return WriteResult{}, ErrConflict()
	case doc.Rev != "" && (!exists || current.rev != doc.Rev):
		return WriteResult{}, ErrConflict()
	}

	body, err := EncodeBody(doc)
	if err != nil {
		return WriteResult{}, err
	}
	rev := NextRevision(doc.Rev)
	m.docs[id] = memDoc{rev: rev, docType: doc.Type(), body: body}
	return WriteResult{ID: id, Rev: rev}, nil
}

func (m *MemoryBackend) Delete(_ context.Context, id, rev string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.docs[id]
	if !ok {
		return ErrNotFound()
	}
	if current.rev != rev {
		return ErrConflict()
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryBackend) ListByType(_ context.Context, docType string) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id, d := range m.docs {
		if docType == "" || d.docType == docType {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]*Document, 0, len(ids))
	for _, id := range ids {
		d := m.docs[id]
		doc, err := DecodeBody(id, d.rev, d.body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *MemoryBackend) ListByTypeWithin(ctx context.Context, docType string, w Window) ([]*Document, error) {
	docs, err := m.ListByType(ctx, docType)
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, doc := range docs {
		if t, ok := doc.Time(); !ok || w.Contains(t) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Len returns the number of stored documents.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
