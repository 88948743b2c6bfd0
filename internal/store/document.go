package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// Document is the generic persisted unit: an opaque id, an opaque revision
// token, and a flat body carrying a "type" discriminator.
type Document struct {
	ID     string
	Rev    string
	Fields map[string]any
}

// NewDocument wraps a body produced by one of the domain records.
func NewDocument(fields map[string]any) *Document {
	return &Document{Fields: fields}
}

// Type returns the "type" discriminator of the body.
func (d *Document) Type() string {
	t, _ := d.Fields["type"].(string)
	return t
}

// MarshalJSON flattens the document to the {"_id", "_rev", ...} wire form.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		out[k] = v
	}
	if d.ID != "" {
		out["_id"] = d.ID
	}
	if d.Rev != "" {
		out["_rev"] = d.Rev
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var in map[string]any
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d.ID, _ = in["_id"].(string)
	d.Rev, _ = in["_rev"].(string)
	delete(in, "_id")
	delete(in, "_rev")
	d.Fields = in
	return nil
}

// Time returns the instant in the "datetime" field, given either as a
// string or as a {"value": string} column.
func (d *Document) Time() (time.Time, bool) {
	raw := d.Fields["datetime"]
	if col, ok := raw.(map[string]any); ok {
		raw = col["value"]
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := domain.ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// EncodeBody serializes the body without identity fields, as backends
// persist it.
func EncodeBody(d *Document) ([]byte, error) {
	b, err := json.Marshal(d.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode document %q: %w", d.ID, err)
	}
	return b, nil
}

// DecodeBody rebuilds a document from its persisted parts.
func DecodeBody(id, rev string, body []byte) (*Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", id, err)
	}
	return &Document{ID: id, Rev: rev, Fields: fields}, nil
}

// NewID returns a fresh document id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NextRevision returns the revision that follows prev ("" for a create).
// Revisions look like "3-<32 hex>", the generation first.
func NextRevision(prev string) string {
	gen := 0
	if i := strings.IndexByte(prev, '-'); i > 0 {
		gen, _ = strconv.Atoi(prev[:i])
	}
	return strconv.Itoa(gen+1) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
