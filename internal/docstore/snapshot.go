package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// Snapshot is a point-in-time copy of every collection, keyed by name.
type Snapshot map[string][]Document

// Counts reports the number of documents per collection.
func (s Snapshot) Counts() map[string]int {
	counts := make(map[string]int, len(s))
	for name, docs := range s {
		counts[name] = len(docs)
	}
	return counts
}

// Collections returns the collection names in sorted order.
func (s Snapshot) Collections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the dataset held by the memory store.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := make(Snapshot, len(m.data))
	for name, docs := range m.data {
		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out := make([]Document, 0, len(ids))
		for _, id := range ids {
			out = append(out, toDocument(id, docs[id]))
		}
		snap[name] = out
	}
	return snap
}

const importDocumentSQL = `INSERT INTO documents (collection, id, data, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4, $5)
ON CONFLICT (collection, id) DO UPDATE
SET data = EXCLUDED.data, created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`

// Import upserts every document of snap in a single transaction, keeping
// identifiers and timestamps. Documents without timestamps get the store
// time.
func (p *Postgres) Import(ctx context.Context, snap Snapshot) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := p.now()
	for _, name := range snap.Collections() {
		for _, doc := range snap[name] {
			payload, err := encodeData(doc.Data)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", name, doc.ID, err)
			}
			created, updated := importTimes(doc, now)
			if _, err := tx.Exec(ctx, importDocumentSQL, name, doc.ID, payload, created, updated); err != nil {
				return fmt.Errorf("import %s/%s: %w", name, doc.ID, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func importTimes(doc Document, now time.Time) (time.Time, time.Time) {
	created, updated := doc.CreatedAt, doc.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() || updated.Before(created) {
		updated = created
	}
	return created, updated
}

// Counts reports the number of stored documents per collection.
func (p *Postgres) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := p.pool.Query(ctx, "SELECT collection, COUNT(*) FROM documents GROUP BY collection")
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan document count: %w", err)
		}
		counts[name] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	return counts, nil
}

// VerifyCounts compares the documents held by p against snap. Collections
// in p that snap does not mention are ignored.
func (p *Postgres) VerifyCounts(ctx context.Context, snap Snapshot) error {
	actual, err := p.Counts(ctx)
	if err != nil {
		return err
	}
	for name, expected := range snap.Counts() {
		if actual[name] < expected {
			return fmt.Errorf("mismatch for %s: expected at least %d documents, got %d", name, expected, actual[name])
		}
	}
	return nil
}
