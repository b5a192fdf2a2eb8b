package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"customer-service/internal/pkg/docstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgxmockExpectationsNotMetMsg = "pgxmock expectations were not met"

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type record struct {
	ID       string `json:"_id,omitempty"`
	Rev      string `json:"_rev,omitempty"`
	Username string `json:"username,omitempty"`
}

func setupCollection(t *testing.T) (context.Context, *Collection, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	coll, err := NewCollection(mockPool, "customers", logger)
	require.NoError(t, err)
	return context.Background(), coll, mockPool
}

func TestNewCollectionFoldsTableName(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	coll, err := NewCollection(mockPool, "Customers", logger)
	require.NoError(t, err)

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE tablename = $1 AND indexname = $2)`)).
		WithArgs("customers", "username_searchIndex").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := coll.IndexExists(context.Background(), "username_searchIndex")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestNewCollectionRejectsBadTableName(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	_, err = NewCollection(mockPool, "customers; DROP TABLE x", logger)
	assert.Error(t, err)
}

func TestEnsureTable(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS customers (id TEXT PRIMARY KEY, rev TEXT NOT NULL, body JSONB NOT NULL)`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, coll.EnsureTable(ctx))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetWhenFound(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	query := `SELECT body || jsonb_build_object('_id', id, '_rev', rev) FROM customers WHERE id = $1`
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).
			AddRow([]byte(`{"_id":"a1","_rev":"1-abc","username":"alice"}`)))

	var got record
	require.NoError(t, coll.Get(ctx, "a1", &got))
	assert.Equal(t, record{ID: "a1", Rev: "1-abc", Username: "alice"}, got)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetWhenMissing(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	query := `SELECT body || jsonb_build_object('_id', id, '_rev', rev) FROM customers WHERE id = $1`
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	var got record
	assert.ErrorIs(t, coll.Get(ctx, "nope", &got), docstore.ErrNoDocument)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestInsertClassifiesUniqueViolations(t *testing.T) {
	query := `INSERT INTO customers (id, rev, body) VALUES ($1, $2, $3)`

	tests := []struct {
		name       string
		constraint string
		expected   error
	}{
		{"primary key", "customers_pkey", docstore.ErrDocumentExists},
		{"username index", "username_searchIndex", docstore.ErrDuplicateKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, coll, mockPool := setupCollection(t)
			defer mockPool.Close()

			mockPool.ExpectExec(regexp.QuoteMeta(query)).
				WithArgs("a1", pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: tt.constraint})

			_, err := coll.Insert(ctx, "a1", record{Username: "alice"})
			assert.ErrorIs(t, err, tt.expected)
			assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
		})
	}
}

func TestInsertWhenSuccess(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(`INSERT INTO customers (id, rev, body) VALUES ($1, $2, $3)`)).
		WithArgs("a1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rev, err := coll.Insert(ctx, "a1", record{ID: "ignored", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, docstore.Generation(rev))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdate(t *testing.T) {
	update := `UPDATE customers SET rev = $1, body = $2 WHERE id = $3 AND rev = $4`
	exists := `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`

	t.Run("success bumps the generation", func(t *testing.T) {
		ctx, coll, mockPool := setupCollection(t)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "a1", "3-abc").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		rev, err := coll.Update(ctx, "a1", "3-abc", record{Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, 4, docstore.Generation(rev))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("stale revision is a conflict", func(t *testing.T) {
		ctx, coll, mockPool := setupCollection(t)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "a1", "1-old").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(regexp.QuoteMeta(exists)).WithArgs("a1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := coll.Update(ctx, "a1", "1-old", record{Username: "alice"})
		assert.ErrorIs(t, err, docstore.ErrRevisionConflict)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("missing document", func(t *testing.T) {
		ctx, coll, mockPool := setupCollection(t)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "a1", "1-old").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(regexp.QuoteMeta(exists)).WithArgs("a1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := coll.Update(ctx, "a1", "1-old", record{Username: "alice"})
		assert.ErrorIs(t, err, docstore.ErrNoDocument)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})
}

func TestRemoveWhenSuccess(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta(`DELETE FROM customers WHERE id = $1 AND rev = $2`)).
		WithArgs("a1", "2-abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, coll.Remove(ctx, "a1", "2-abc"))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestQueryByUsername(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	query := `SELECT body || jsonb_build_object('_id', id, '_rev', rev) FROM customers WHERE body->'username' = $1::jsonb ORDER BY id`
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(`"al' OR 1=1 --"`).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}))

	cur, err := coll.Query(ctx, docstore.Eq("username", "al' OR 1=1 --"))
	require.NoError(t, err)
	assert.False(t, cur.Next(ctx))
	assert.NoError(t, cur.Err())
	assert.NoError(t, cur.Close(ctx))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestQueryAll(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	query := `SELECT body || jsonb_build_object('_id', id, '_rev', rev) FROM customers ORDER BY id`
	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).
			AddRow([]byte(`{"_id":"a","_rev":"1-x","username":"alice"}`)).
			AddRow([]byte(`{"_id":"b","_rev":"1-y","username":"bob"}`)))

	cur, err := coll.Query(ctx, docstore.All())
	require.NoError(t, err)
	var got []string
	for cur.Next(ctx) {
		var r record
		require.NoError(t, cur.Decode(&r))
		got = append(got, r.Username)
	}
	require.NoError(t, cur.Close(ctx))
	assert.Equal(t, []string{"alice", "bob"}, got)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestIndexLifecycle(t *testing.T) {
	ctx, coll, mockPool := setupCollection(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE tablename = $1 AND indexname = $2)`)).
		WithArgs("customers", "username_searchIndex").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mockPool.ExpectExec(regexp.QuoteMeta(`CREATE UNIQUE INDEX IF NOT EXISTS "username_searchIndex" ON customers ((body->'username'))`)).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))

	exists, err := coll.IndexExists(ctx, "username_searchIndex")
	require.NoError(t, err)
	assert.False(t, exists)

	err = coll.CreateIndex(ctx, docstore.IndexDefinition{Name: "username_searchIndex", Field: "username", Unique: true})
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestInfo(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()
	coll, err := NewCollection(mockPool, "customers", logger)
	require.NoError(t, err)

	mockPool.ExpectPing().WillReturnError(errors.New("connection refused"))

	assert.EqualError(t, coll.Info(context.Background()), "connection refused")
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestBuildWhere(t *testing.T) {
	where, args, err := buildWhere(docstore.Eq(docstore.IDField, "a1"))
	require.NoError(t, err)
	assert.Equal(t, " WHERE id = $1", where)
	assert.Equal(t, []any{"a1"}, args)

	_, _, err = buildWhere(docstore.Eq("username'); DROP TABLE customers; --", "x"))
	assert.ErrorIs(t, err, docstore.ErrInvalidSelector)
}

func TestEncodeBodyStripsStoreFields(t *testing.T) {
	body, err := encodeBody(record{ID: "a1", Rev: "1-abc", Username: "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice"}`, string(body))
}
