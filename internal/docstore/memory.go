package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

type storedDocument struct {
	Data      map[string]any `json:"data"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

type dataset map[string]map[string]storedDocument

// Memory keeps every collection in process memory. When constructed with a
// file path, each mutation rewrites the dataset to that file atomically.
type Memory struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	now      func() time.Time
	newID    func() string
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

// MemoryOption customises a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source used for document timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides document identifier generation.
func WithIDGenerator(gen func() string) MemoryOption {
	return func(m *Memory) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// NewMemory returns a memory store. An empty path disables persistence.
func NewMemory(path string, opts ...MemoryOption) (*Memory, error) {
	store := &Memory{
		filePath: strings.TrimSpace(path),
		data:     dataset{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newDocumentID,
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (m *Memory) load() error {
	if m.filePath == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(m.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	var loaded dataset
	if err := json.NewDecoder(file).Decode(&loaded); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}
	if loaded != nil {
		m.data = loaded
	}
	return nil
}

func (m *Memory) persistLocked() error {
	if m.persistOverride != nil {
		if err := m.persistOverride(m.data); err != nil {
			return err
		}
	}
	if m.filePath == "" {
		return nil
	}

	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m.data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, m.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

// Collection returns a handle on the named collection.
func (m *Memory) Collection(name string) Collection {
	return &memoryCollection{store: m, name: name}
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close flushes nothing; every mutation is already persisted.
func (m *Memory) Close() error { return nil }

type memoryCollection struct {
	store *Memory
	name  string
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) List(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filters := make([]Filter, 0, len(q.Where))
	for _, f := range q.Where {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		filters = append(filters, Filter{Field: f.Field, Value: value})
	}

	c.store.mu.RLock()
	docs := make([]Document, 0, len(c.store.data[c.name]))
	for id, stored := range c.store.data[c.name] {
		if !matches(stored.Data, filters) {
			continue
		}
		docs = append(docs, toDocument(id, stored))
	}
	c.store.mu.RUnlock()

	sortDocuments(docs, q)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (c *memoryCollection) Get(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	stored, ok := c.store.data[c.name][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return toDocument(id, stored), nil
}

func (c *memoryCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := normalizeFields(fields)
	if err != nil {
		return "", err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.insertLocked(data)
}

func (c *memoryCollection) AddWithNextOrder(ctx context.Context, field string, fields map[string]any) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	data, err := normalizeFields(fields)
	if err != nil {
		return "", 0, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	maxOrder := 0.0
	for _, stored := range c.store.data[c.name] {
		if value, ok := NumericField(stored.Data, field); ok && value > maxOrder {
			maxOrder = value
		}
	}
	next := int(math.Floor(maxOrder)) + 1
	data[field] = float64(next)
	id, err := c.insertLocked(data)
	if err != nil {
		return "", 0, err
	}
	return id, next, nil
}

func (c *memoryCollection) insertLocked(data map[string]any) (string, error) {
	docs, ok := c.store.data[c.name]
	if !ok {
		docs = make(map[string]storedDocument)
		c.store.data[c.name] = docs
	}
	id := c.store.newID()
	for _, exists := docs[id]; exists; _, exists = docs[id] {
		id = c.store.newID()
	}
	now := c.store.now()
	created, updated := now, now
	docs[id] = storedDocument{Data: data, CreatedAt: &created, UpdatedAt: &updated}
	if err := c.store.persistLocked(); err != nil {
		delete(docs, id)
		return "", err
	}
	return id, nil
}

func (c *memoryCollection) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := normalizeFields(fields)
	if err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	stored, ok := c.store.data[c.name][id]
	if !ok {
		return ErrNotFound
	}
	previous := stored
	merged := make(map[string]any, len(stored.Data)+len(patch))
	for key, value := range stored.Data {
		merged[key] = value
	}
	for key, value := range patch {
		merged[key] = value
	}
	updated := c.store.now()
	if stored.CreatedAt != nil && updated.Before(*stored.CreatedAt) {
		updated = *stored.CreatedAt
	}
	stored.Data = merged
	stored.UpdatedAt = &updated
	c.store.data[c.name][id] = stored
	if err := c.store.persistLocked(); err != nil {
		c.store.data[c.name][id] = previous
		return err
	}
	return nil
}

func (c *memoryCollection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	stored, ok := c.store.data[c.name][id]
	if !ok {
		return ErrNotFound
	}
	delete(c.store.data[c.name], id)
	if err := c.store.persistLocked(); err != nil {
		c.store.data[c.name][id] = stored
		return err
	}
	return nil
}

func toDocument(id string, stored storedDocument) Document {
	doc := Document{ID: id, Data: cloneMap(stored.Data)}
	if stored.CreatedAt != nil {
		doc.CreatedAt = *stored.CreatedAt
	}
	if stored.UpdatedAt != nil {
		doc.UpdatedAt = *stored.UpdatedAt
	}
	return doc
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = cloneValue(value)
	}
	return dst
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		value, ok := data[f.Field]
		if !ok || !reflect.DeepEqual(value, f.Value) {
			return false
		}
	}
	return true
}

func sortDocuments(docs []Document, q Query) {
	if q.OrderBy == "" {
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		cmp := compareDocuments(docs[i], docs[j], q.OrderBy)
		if cmp == 0 {
			return docs[i].ID < docs[j].ID
		}
		if q.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareDocuments(a, b Document, field string) int {
	switch field {
	case FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return compareValues(a.Data[field], b.Data[field])
}

// compareValues orders missing < numbers < strings < booleans < other.
func compareValues(a, b any) int {
	rankA, rankB := valueRank(a), valueRank(b)
	if rankA != rankB {
		if rankA < rankB {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
	}
	return 0
}

func valueRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	default:
		return 4
	}
}
