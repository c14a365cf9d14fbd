package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool used by the Postgres store. It is
// also satisfied by pgxmock pools.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresConfig describes how the store initialises its connection pool.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	AcquireTimeout      time.Duration
	ApplicationName     string
}

// Postgres stores every collection in the documents table.
type Postgres struct {
	pool  PgxPool
	now   func() time.Time
	newID func() string
}

// OpenPostgres connects a pool using cfg.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return NewPostgres(pool), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool PgxPool, opts ...PostgresOption) *Postgres {
	store := &Postgres{
		pool:  pool,
		now:   func() time.Time { return time.Now().UTC() },
		newID: newDocumentID,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// PostgresOption customises a Postgres store.
type PostgresOption func(*Postgres)

// WithPostgresClock overrides the time source used for document timestamps.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(p *Postgres) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPostgresIDGenerator overrides document identifier generation.
func WithPostgresIDGenerator(gen func() string) PostgresOption {
	return func(p *Postgres) {
		if gen != nil {
			p.newID = gen
		}
	}
}

func (p *Postgres) Collection(name string) Collection {
	return &postgresCollection{store: p, name: name}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type postgresCollection struct {
	store *Postgres
	name  string
}

func (c *postgresCollection) Name() string { return c.name }

const selectDocumentColumns = "SELECT id, data, created_at, updated_at FROM documents"

func (c *postgresCollection) List(ctx context.Context, q Query) ([]Document, error) {
	sql, args, err := buildListQuery(c.name, q)
	if err != nil {
		return nil, err
	}
	rows, err := c.store.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	return docs, nil
}

func buildListQuery(collection string, q Query) (string, []any, error) {
	var builder strings.Builder
	builder.WriteString(selectDocumentColumns)
	builder.WriteString(" WHERE collection = $1")
	args := []any{collection}

	for _, f := range q.Where {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter value: %w", err)
		}
		args = append(args, f.Field, string(value))
		fmt.Fprintf(&builder, " AND data -> $%d::text = $%d::jsonb", len(args)-1, len(args))
	}

	direction := "ASC"
	if q.Desc {
		direction = "DESC"
	}
	switch q.OrderBy {
	case "":
		builder.WriteString(" ORDER BY id")
	case FieldCreatedAt:
		builder.WriteString(" ORDER BY created_at " + direction + ", id")
	case FieldUpdatedAt:
		builder.WriteString(" ORDER BY updated_at " + direction + ", id")
	default:
		args = append(args, q.OrderBy)
		fmt.Fprintf(&builder, " ORDER BY data -> $%d::text %s NULLS FIRST, id", len(args), direction)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		builder.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return builder.String(), args, nil
}

func (c *postgresCollection) Get(ctx context.Context, id string) (Document, error) {
	row := c.store.pool.QueryRow(ctx, selectDocumentColumns+" WHERE collection = $1 AND id = $2", c.name, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return doc, nil
}

const insertDocumentSQL = "INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3::jsonb, $4, $4)"

func (c *postgresCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	payload, err := encodeData(fields)
	if err != nil {
		return "", err
	}
	id := c.store.newID()
	if _, err := c.store.pool.Exec(ctx, insertDocumentSQL, c.name, id, payload, c.store.now()); err != nil {
		return "", fmt.Errorf("insert %s: %w", c.name, classifyWriteError(err))
	}
	return id, nil
}

// AddWithNextOrder serialises order assignment per collection with a
// transaction-scoped advisory lock.
func (c *postgresCollection) AddWithNextOrder(ctx context.Context, field string, fields map[string]any) (string, int, error) {
	tx, err := c.store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", 0, fmt.Errorf("begin %s insert: %w", c.name, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", c.name); err != nil {
		return "", 0, fmt.Errorf("lock %s: %w", c.name, err)
	}
	var maxOrder float64
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(CASE WHEN jsonb_typeof(data -> $2::text) = 'number' THEN (data ->> $2::text)::float8 END), 0) FROM documents WHERE collection = $1",
		c.name, field).Scan(&maxOrder)
	if err != nil {
		return "", 0, fmt.Errorf("max %s.%s: %w", c.name, field, err)
	}
	next := int(math.Floor(maxOrder)) + 1

	data := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		data[key] = value
	}
	data[field] = next
	payload, err := encodeData(data)
	if err != nil {
		return "", 0, err
	}
	id := c.store.newID()
	if _, err := tx.Exec(ctx, insertDocumentSQL, c.name, id, payload, c.store.now()); err != nil {
		return "", 0, fmt.Errorf("insert %s: %w", c.name, classifyWriteError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return "", 0, fmt.Errorf("commit %s insert: %w", c.name, err)
	}
	return id, next, nil
}

func (c *postgresCollection) Update(ctx context.Context, id string, fields map[string]any) error {
	payload, err := encodeData(fields)
	if err != nil {
		return err
	}
	tag, err := c.store.pool.Exec(ctx,
		"UPDATE documents SET data = data || $3::jsonb, updated_at = GREATEST(created_at, $4) WHERE collection = $1 AND id = $2",
		c.name, id, payload, c.store.now())
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, classifyWriteError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *postgresCollection) Delete(ctx context.Context, id string) error {
	tag, err := c.store.pool.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", c.name, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeData(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document fields: %w", err)
	}
	return string(payload), nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc       Document
		raw       []byte
		createdAt *time.Time
		updatedAt *time.Time
	)
	if err := row.Scan(&doc.ID, &raw, &createdAt, &updatedAt); err != nil {
		return Document{}, err
	}
	doc.Data = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return Document{}, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
	}
	if createdAt != nil {
		doc.CreatedAt = createdAt.UTC()
	}
	if updatedAt != nil {
		doc.UpdatedAt = updatedAt.UTC()
	}
	return doc, nil
}

const uniqueViolation = "23505"

// classifyWriteError maps unique index violations to ErrConflict and keeps
// the driver error in the chain.
func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
