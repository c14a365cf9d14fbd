package docstore

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portodas-api/internal/docstore/migrations"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	store := NewPostgres(mock,
		WithPostgresClock(func() time.Time { return fixedNow }),
		WithPostgresIDGenerator(func() string { return "doc-1" }),
	)
	return store, mock
}

func TestPostgresAddInsertsJSONPayload(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec(insertDocumentSQL).
		WithArgs("posts", "doc-1", `{"title":"Olá"}`, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.Collection("posts").Add(context.Background(), map[string]any{"title": "Olá"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMapsRowsAndMissing(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()
	created := fixedNow.Add(-time.Hour)

	mock.ExpectQuery(selectDocumentColumns+" WHERE collection = $1 AND id = $2").
		WithArgs("posts", "doc-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow("doc-1", []byte(`{"title":"Olá","views":3}`), &created, &fixedNow))

	doc, err := store.Collection("posts").Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Olá", doc.Data["title"])
	assert.Equal(t, float64(3), doc.Data["views"])
	assert.Equal(t, created, doc.CreatedAt)
	assert.Equal(t, fixedNow, doc.UpdatedAt)

	mock.ExpectQuery(selectDocumentColumns+" WHERE collection = $1 AND id = $2").
		WithArgs("posts", "missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.Collection("posts").Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateAndDeleteReportMissingRows(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()
	coll := store.Collection("posts")

	mock.ExpectExec("UPDATE documents SET data = data || $3::jsonb, updated_at = GREATEST(created_at, $4) WHERE collection = $1 AND id = $2").
		WithArgs("posts", "doc-1", `{"title":"Novo"}`, fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, coll.Update(context.Background(), "doc-1", map[string]any{"title": "Novo"}))

	mock.ExpectExec("UPDATE documents SET data = data || $3::jsonb, updated_at = GREATEST(created_at, $4) WHERE collection = $1 AND id = $2").
		WithArgs("posts", "gone", `{}`, fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, coll.Update(context.Background(), "gone", nil), ErrNotFound)

	mock.ExpectExec("DELETE FROM documents WHERE collection = $1 AND id = $2").
		WithArgs("posts", "gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, coll.Delete(context.Background(), "gone"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildListQuery(t *testing.T) {
	sql, args, err := buildListQuery("publicContent", Query{
		OrderBy: "order",
		Where:   []Filter{{Field: "isActive", Value: true}},
		Limit:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, selectDocumentColumns+
		" WHERE collection = $1 AND data -> $2::text = $3::jsonb ORDER BY data -> $4::text ASC NULLS FIRST, id LIMIT $5", sql)
	assert.Equal(t, []any{"publicContent", "isActive", "true", "order", 5}, args)

	sql, args, err = buildListQuery("posts", Query{OrderBy: FieldCreatedAt, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, selectDocumentColumns+" WHERE collection = $1 ORDER BY created_at DESC, id", sql)
	assert.Equal(t, []any{"posts"}, args)
}

func TestPostgresListScansEveryRow(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery(selectDocumentColumns+" WHERE collection = $1 ORDER BY created_at DESC, id").
		WithArgs("posts").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow("b", []byte(`{"title":"B"}`), &fixedNow, &fixedNow).
			AddRow("a", []byte(`{"title":"A"}`), &fixedNow, &fixedNow))

	docs, err := store.Collection("posts").List(context.Background(), Query{OrderBy: FieldCreatedAt, Desc: true})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "A", docs[1].Data["title"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddWithNextOrderLocksCollection(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("SELECT pg_advisory_xact_lock(hashtext($1))").
		WithArgs("sectionIniciativas").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT COALESCE(MAX(CASE WHEN jsonb_typeof(data -> $2::text) = 'number' THEN (data ->> $2::text)::float8 END), 0) FROM documents WHERE collection = $1").
		WithArgs("sectionIniciativas", "ordem").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(float64(4)))
	mock.ExpectExec(insertDocumentSQL).
		WithArgs("sectionIniciativas", "doc-1", `{"ordem":5,"titulo":"Nova"}`, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	adder := store.Collection("sectionIniciativas").(OrderedAdder)
	id, next, err := adder.AddWithNextOrder(context.Background(), "ordem", map[string]any{"titulo": "Nova"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
	assert.Equal(t, 5, next)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWritesMapUniqueViolations(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	violation := &pgconn.PgError{Code: "23505", ConstraintName: "documents_identity_email_key"}
	mock.ExpectExec(insertDocumentSQL).
		WithArgs("identityUsers", "doc-1", `{"email":"ana@example.org"}`, fixedNow).
		WillReturnError(violation)
	mock.ExpectExec("UPDATE documents SET data = data || $3::jsonb, updated_at = GREATEST(created_at, $4) WHERE collection = $1 AND id = $2").
		WithArgs("identityUsers", "u-2", `{"email":"ana@example.org"}`, fixedNow).
		WillReturnError(violation)
	mock.ExpectExec(insertDocumentSQL).
		WithArgs("identityUsers", "doc-1", `{"email":"bia@example.org"}`, fixedNow).
		WillReturnError(errors.New("connection reset"))

	users := store.Collection("identityUsers")
	_, err := users.Add(context.Background(), map[string]any{"email": "ana@example.org"})
	assert.ErrorIs(t, err, ErrConflict)
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)

	err = users.Update(context.Background(), "u-2", map[string]any{"email": "ana@example.org"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = users.Add(context.Background(), map[string]any{"email": "bia@example.org"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsEnforceUniqueIdentityEmail(t *testing.T) {
	script, err := fs.ReadFile(migrations.FS, "00003_unique_identity_email.sql")
	require.NoError(t, err)
	assert.Contains(t, string(script), "CREATE UNIQUE INDEX IF NOT EXISTS documents_identity_email_key")
	assert.Contains(t, string(script), "lower(data ->> 'email')")
	assert.Contains(t, string(script), "WHERE collection = 'identityUsers'")
}
