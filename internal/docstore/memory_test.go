package docstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
}

func TestMemoryAddGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	clock := newSteppingClock()
	store, err := NewMemory("", WithClock(clock.Now))
	require.NoError(t, err)
	coll := store.Collection("testimonials")

	id, err := coll.Add(ctx, map[string]any{"quote": "aaaaaaaaaa", "author": "Jane Doe"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := coll.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", doc.Data["author"])
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	require.NoError(t, coll.Update(ctx, id, map[string]any{"author": "John"}))
	updated, err := coll.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "John", updated.Data["author"])
	assert.Equal(t, "aaaaaaaaaa", updated.Data["quote"])
	assert.Equal(t, doc.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.NoError(t, coll.Delete(ctx, id))
	_, err = coll.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, coll.Delete(ctx, id), ErrNotFound)
	assert.ErrorIs(t, coll.Update(ctx, id, map[string]any{"author": "x"}), ErrNotFound)
}

func TestMemoryReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemory("")
	require.NoError(t, err)
	coll := store.Collection("posts")

	id, err := coll.Add(ctx, map[string]any{"tags": []string{"a"}})
	require.NoError(t, err)
	doc, err := coll.Get(ctx, id)
	require.NoError(t, err)
	doc.Data["tags"].([]any)[0] = "mutated"

	again, err := coll.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, again.Data["tags"])
}

func TestMemoryListOrdersFiltersAndLimits(t *testing.T) {
	ctx := context.Background()
	clock := newSteppingClock()
	store, err := NewMemory("", WithClock(clock.Now))
	require.NoError(t, err)
	coll := store.Collection("sections")

	for _, fields := range []map[string]any{
		{"name": "c", "order": 3, "isActive": true},
		{"name": "a", "order": 1, "isActive": false},
		{"name": "b", "order": 2, "isActive": true},
		{"name": "legacy"},
	} {
		_, err := coll.Add(ctx, fields)
		require.NoError(t, err)
	}

	byOrder, err := coll.List(ctx, Query{OrderBy: "order"})
	require.NoError(t, err)
	require.Len(t, byOrder, 4)
	assert.Equal(t, []any{"legacy", "a", "b", "c"}, names(byOrder))

	active, err := coll.List(ctx, Query{OrderBy: "order", Where: []Filter{{Field: "isActive", Value: true}}})
	require.NoError(t, err)
	assert.Equal(t, []any{"b", "c"}, names(active))

	newest, err := coll.List(ctx, Query{OrderBy: FieldCreatedAt, Desc: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []any{"legacy", "b"}, names(newest))
}

func names(docs []Document) []any {
	out := make([]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data["name"])
	}
	return out
}

func TestMemoryPersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMemory(path)
	require.NoError(t, err)

	id, err := store.Collection("posts").Add(ctx, map[string]any{"title": "Olá"})
	require.NoError(t, err)

	reloaded, err := NewMemory(path)
	require.NoError(t, err)
	doc, err := reloaded.Collection("posts").Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Olá", doc.Data["title"])
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestMemoryRollsBackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemory("")
	require.NoError(t, err)
	coll := store.Collection("posts")
	id, err := coll.Add(ctx, map[string]any{"title": "keep"})
	require.NoError(t, err)

	store.persistOverride = func(dataset) error { return errors.New("disk full") }

	_, err = coll.Add(ctx, map[string]any{"title": "lost"})
	require.Error(t, err)
	require.Error(t, coll.Update(ctx, id, map[string]any{"title": "changed"}))
	require.Error(t, coll.Delete(ctx, id))

	store.persistOverride = nil
	docs, err := coll.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep", docs[0].Data["title"])
}

func TestMemoryAddWithNextOrderIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemory("")
	require.NoError(t, err)
	coll := store.Collection("sectionCanaisDenuncia").(OrderedAdder)

	const workers = 20
	var wg sync.WaitGroup
	orders := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, next, err := coll.AddWithNextOrder(ctx, "ordem", map[string]any{"valor": fmt.Sprint(i)})
			if err == nil {
				orders <- next
			}
		}(i)
	}
	wg.Wait()
	close(orders)

	seen := make(map[int]bool)
	for order := range orders {
		assert.False(t, seen[order], "duplicate order %d", order)
		seen[order] = true
	}
	assert.Len(t, seen, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, seen[i], "missing order %d", i)
	}
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	store, err := NewMemory("")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Collection("posts").Add(ctx, map[string]any{"title": "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNumericField(t *testing.T) {
	data := map[string]any{"a": float64(2), "b": 3, "c": "4", "d": nil}
	v, ok := NumericField(data, "a")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, ok = NumericField(data, "b")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = NumericField(data, "c")
	assert.False(t, ok)
	_, ok = NumericField(data, "missing")
	assert.False(t, ok)
}
