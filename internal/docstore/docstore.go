// Package docstore provides a minimal document database abstraction: named
// collections of JSON documents keyed by opaque string identifiers, each
// carrying store-managed creation and update timestamps.
//
// Two backends are available: an in-memory store that can persist its dataset
// to a JSON file, and a Postgres store that keeps every collection in a single
// JSONB table.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a document does not exist in a collection.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when a write violates a unique index.
	ErrConflict = errors.New("docstore: document conflicts with an existing one")
)

// Timestamp field names accepted by Query.OrderBy. They sort by the
// store-managed timestamps instead of a data field.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is a stored record. CreatedAt and UpdatedAt are zero when the
// document predates store-managed timestamps.
type Document struct {
	ID        string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter restricts a query to documents whose field equals Value.
type Filter struct {
	Field string
	Value any
}

// Query describes a List call. A zero Query returns every document in
// unspecified order.
type Query struct {
	OrderBy string
	Desc    bool
	Limit   int
	Where   []Filter
}

// Collection is a handle on one named collection.
type Collection interface {
	Name() string
	List(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, id string) (Document, error)
	// Add stores a new document and returns its identifier. Both timestamps
	// are set to the same store time.
	Add(ctx context.Context, fields map[string]any) (string, error)
	// Update merges fields into an existing document and refreshes its
	// update timestamp.
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// OrderedAdder is implemented by collections able to read the maximum of a
// numeric field and insert a document carrying max+1 as one atomic step.
type OrderedAdder interface {
	AddWithNextOrder(ctx context.Context, field string, fields map[string]any) (string, int, error)
}

// Store hands out collection handles over one backend.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}

func newDocumentID() string {
	return uuid.NewString()
}

// normalizeFields converts caller-supplied values to their JSON form so that
// every backend stores and returns the same shapes (numbers as float64,
// structs as maps) and callers never share memory with stored documents.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document fields: %w", err)
	}
	normalized := make(map[string]any, len(fields))
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	return normalized, nil
}

func normalizeValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode filter value: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("decode filter value: %w", err)
	}
	return normalized, nil
}

// NumericField extracts a numeric value, treating anything else as absent.
func NumericField(data map[string]any, field string) (float64, bool) {
	switch v := data[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
