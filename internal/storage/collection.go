package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portodas-api/internal/docstore"
)

// collection implements the list/get/create/update/delete contract shared by
// every resource on top of a docstore collection and a mapper.
type collection[T any] struct {
	coll   docstore.Collection
	sort   docstore.Query
	decode func(*docReader) T
	opts   options
}

func newCollection[T any](coll docstore.Collection, sort docstore.Query, cfg options, decode func(*docReader) T) collection[T] {
	return collection[T]{coll: coll, sort: sort, decode: decode, opts: cfg}
}

func (c collection[T]) mapDocument(doc docstore.Document, now time.Time) (T, error) {
	reader := newDocReader(c.coll.Name(), doc, now)
	item := c.decode(reader)
	if reader.err != nil {
		var zero T
		return zero, reader.err
	}
	return item, nil
}

func (c collection[T]) query(ctx context.Context, q docstore.Query) ([]T, error) {
	docs, err := c.coll.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.coll.Name(), err)
	}
	now := c.opts.now()
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := c.mapDocument(doc, now)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c collection[T]) list(ctx context.Context) ([]T, error) {
	return c.query(ctx, c.sort)
}

func (c collection[T]) get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := c.coll.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("get %s/%s: %w", c.coll.Name(), id, err)
	}
	return c.mapDocument(doc, c.opts.now())
}

// create persists fields and reads the document back so that store-assigned
// values are part of the result.
func (c collection[T]) create(ctx context.Context, fields fieldSet) (T, error) {
	var zero T
	id, err := c.coll.Add(ctx, fields)
	if err != nil {
		return zero, fmt.Errorf("create %s: %w", c.coll.Name(), err)
	}
	return c.get(ctx, id)
}

// createOrdered assigns field when explicit is nil before creating.
func (c collection[T]) createOrdered(ctx context.Context, field string, explicit *int, fields fieldSet) (T, error) {
	var zero T
	if explicit != nil {
		fields[field] = *explicit
		return c.create(ctx, fields)
	}
	if c.opts.policy == OrderAtomic {
		if adder, ok := c.coll.(docstore.OrderedAdder); ok {
			id, _, err := adder.AddWithNextOrder(ctx, field, fields)
			if err != nil {
				return zero, fmt.Errorf("create %s: %w", c.coll.Name(), err)
			}
			return c.get(ctx, id)
		}
	}
	next, err := NextOrder(ctx, c.coll, field)
	if err != nil {
		return zero, err
	}
	fields[field] = next
	return c.create(ctx, fields)
}

// update checks existence before merging so that a missing document is
// reported without touching the store.
func (c collection[T]) update(ctx context.Context, id string, fields fieldSet) (T, error) {
	var zero T
	if _, err := c.get(ctx, id); err != nil {
		return zero, err
	}
	if err := c.coll.Update(ctx, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("update %s/%s: %w", c.coll.Name(), id, err)
	}
	return c.get(ctx, id)
}

func (c collection[T]) remove(ctx context.Context, id string) error {
	if _, err := c.coll.Get(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s/%s: %w", c.coll.Name(), id, err)
	}
	if err := c.coll.Delete(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s/%s: %w", c.coll.Name(), id, err)
	}
	return nil
}
