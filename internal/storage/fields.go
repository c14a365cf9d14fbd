package storage

import (
	"encoding/json"
	"math"
	"time"

	"portodas-api/internal/docstore"
)

// docReader maps one stored document. The first missing required field is
// kept in err; later reads still return zero values so mappers stay linear.
type docReader struct {
	doc        docstore.Document
	collection string
	now        time.Time
	err        error
}

func newDocReader(collection string, doc docstore.Document, now time.Time) *docReader {
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	return &docReader{doc: doc, collection: collection, now: now}
}

func (r *docReader) str(key string) string {
	value, _ := r.doc.Data[key].(string)
	return value
}

func (r *docReader) required(key string) string {
	value, ok := r.doc.Data[key].(string)
	if !ok || value == "" {
		r.fail(key)
	}
	return value
}

func (r *docReader) optional(key string) *string {
	value, ok := r.doc.Data[key].(string)
	if !ok {
		return nil
	}
	return &value
}

func (r *docReader) int(key string) int {
	value, ok := docstore.NumericField(r.doc.Data, key)
	if !ok {
		return 0
	}
	return int(math.Round(value))
}

func (r *docReader) bool(key string, fallback bool) bool {
	value, ok := r.doc.Data[key].(bool)
	if !ok {
		return fallback
	}
	return value
}

// into decodes a nested value through its JSON form. Absent keys leave dest
// untouched.
func (r *docReader) into(key string, dest any) {
	value, ok := r.doc.Data[key]
	if !ok || value == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		r.fail(key)
		return
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.fail(key)
	}
}

func (r *docReader) createdAt() time.Time {
	if r.doc.CreatedAt.IsZero() {
		return r.now
	}
	return r.doc.CreatedAt
}

func (r *docReader) updatedAt() time.Time {
	if r.doc.UpdatedAt.IsZero() {
		return r.createdAt()
	}
	return r.doc.UpdatedAt
}

func (r *docReader) fail(field string) {
	if r.err == nil {
		r.err = &IntegrityError{Collection: r.collection, ID: r.doc.ID, Field: field}
	}
}

// fieldSet accumulates the values written by create and update calls.
type fieldSet map[string]any

func (f fieldSet) setNonEmpty(key, value string) {
	if value != "" {
		f[key] = value
	}
}

func (f fieldSet) setString(key string, value *string) {
	if value != nil {
		f[key] = *value
	}
}

func (f fieldSet) setInt(key string, value *int) {
	if value != nil {
		f[key] = *value
	}
}

func (f fieldSet) setBool(key string, value *bool) {
	if value != nil {
		f[key] = *value
	}
}
