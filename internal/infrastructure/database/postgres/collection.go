package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"customer-service/internal/pkg/docstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Collection stores documents in a table of (id, rev, body JSONB). The
// store-managed fields live in their own columns and are merged back into
// the body on read.
type Collection struct {
	db     DBPool
	table  string
	logger *slog.Logger
}

var _ docstore.Collection = (*Collection)(nil)

func NewCollection(db DBPool, table string, logger *slog.Logger) (*Collection, error) {
	if db == nil {
		panic("DBPool cannot be nil for Collection")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid collection name %q", table)
	}
	// Unquoted identifiers fold to lower case, and pg_indexes stores the folded name.
	table = strings.ToLower(table)
	return &Collection{
		db:     db,
		table:  table,
		logger: logger.With("component", "PostgresCollection", "collection", table),
	}, nil
}

func (c *Collection) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, rev TEXT NOT NULL, body JSONB NOT NULL)`, c.table)
	if _, err := c.db.Exec(ctx, query); err != nil {
		c.logger.ErrorContext(ctx, "Failed to ensure collection table", slog.Any("error", err))
		return fmt.Errorf("failed to create table %s: %w", c.table, err)
	}
	return nil
}

func (c *Collection) Get(ctx context.Context, id string, out interface{}) error {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, docColumn, c.table)

	var raw []byte
	err := c.db.QueryRow(ctx, query, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNoDocument
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Collection) Contains(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, c.table)

	var exists bool
	if err := c.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (c *Collection) Insert(ctx context.Context, id string, doc interface{}) (string, error) {
	body, err := encodeBody(doc)
	if err != nil {
		return "", err
	}
	rev := docstore.NextRevision("")
	query := fmt.Sprintf(`INSERT INTO %s (id, rev, body) VALUES ($1, $2, $3)`, c.table)

	if _, err := c.db.Exec(ctx, query, id, rev, body); err != nil {
		return "", c.classifyWriteError(err)
	}
	return rev, nil
}

func (c *Collection) Update(ctx context.Context, id, rev string, doc interface{}) (string, error) {
	body, err := encodeBody(doc)
	if err != nil {
		return "", err
	}
	newRev := docstore.NextRevision(rev)
	query := fmt.Sprintf(`UPDATE %s SET rev = $1, body = $2 WHERE id = $3 AND rev = $4`, c.table)

	tag, err := c.db.Exec(ctx, query, newRev, body, id, rev)
	if err != nil {
		return "", c.classifyWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return "", c.missOrConflict(ctx, id)
	}
	return newRev, nil
}

func (c *Collection) Remove(ctx context.Context, id, rev string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND rev = $2`, c.table)

	tag, err := c.db.Exec(ctx, query, id, rev)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return c.missOrConflict(ctx, id)
	}
	return nil
}

func (c *Collection) Query(ctx context.Context, sel docstore.Selector) (docstore.Cursor, error) {
	where, args, err := buildWhere(sel)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY id`, docColumn, c.table, where)

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &cursor{rows: rows}, nil
}

func (c *Collection) IndexExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE tablename = $1 AND indexname = $2)`

	var exists bool
	if err := c.db.QueryRow(ctx, query, c.table, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (c *Collection) CreateIndex(ctx context.Context, def docstore.IndexDefinition) error {
	if !identifierPattern.MatchString(def.Name) || !identifierPattern.MatchString(def.Field) {
		return fmt.Errorf("invalid index definition %q on %q", def.Name, def.Field)
	}
	unique := ""
	if def.Unique {
		unique = "UNIQUE "
	}
	query := fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS "%s" ON %s ((body->'%s'))`, unique, def.Name, c.table, def.Field)

	if _, err := c.db.Exec(ctx, query); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %w", docstore.ErrDuplicateKey, err)
		}
		return err
	}
	c.logger.InfoContext(ctx, "Index created", "index", def.Name, "field", def.Field, "unique", def.Unique)
	return nil
}

func (c *Collection) Info(ctx context.Context) error {
	return c.db.Ping(ctx)
}

func (c *Collection) missOrConflict(ctx context.Context, id string) error {
	exists, err := c.Contains(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return docstore.ErrRevisionConflict
	}
	return docstore.ErrNoDocument
}

func (c *Collection) classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	if pgErr.ConstraintName == c.table+"_pkey" {
		return fmt.Errorf("%w: %w", docstore.ErrDocumentExists, err)
	}
	return fmt.Errorf("%w: %w", docstore.ErrDuplicateKey, err)
}

const docColumn = `body || jsonb_build_object('_id', id, '_rev', rev)`

// buildWhere renders a selector as a WHERE clause. The field name has passed
// Selector.Validate and the value is always a bind parameter.
func buildWhere(sel docstore.Selector) (string, []any, error) {
	if err := sel.Validate(); err != nil {
		return "", nil, err
	}

	if sel.Field == docstore.IDField {
		switch {
		case sel.Operator == docstore.OpGt && sel.Value == nil:
			return "", nil, nil
		case sel.Operator == docstore.OpGt:
			return " WHERE id > $1", []any{sel.Value}, nil
		default:
			return " WHERE id = $1", []any{sel.Value}, nil
		}
	}

	expr := fmt.Sprintf("body->'%s'", sel.Field)
	if sel.Operator == docstore.OpGt && sel.Value == nil {
		return fmt.Sprintf(" WHERE %s IS NOT NULL", expr), nil, nil
	}
	val, err := json.Marshal(sel.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", docstore.ErrInvalidSelector, err)
	}
	op := "="
	if sel.Operator == docstore.OpGt {
		op = ">"
	}
	return fmt.Sprintf(" WHERE %s %s $1::jsonb", expr, op), []any{string(val)}, nil
}

// encodeBody marshals doc to a JSON object without the store-managed fields.
func encodeBody(doc interface{}) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("document must encode to a JSON object")
	}
	delete(fields, docstore.IDField)
	delete(fields, docstore.RevField)
	return json.Marshal(fields)
}

type cursor struct {
	rows pgx.Rows
}

func (c *cursor) Next(context.Context) bool {
	return c.rows.Next()
}

func (c *cursor) Decode(val interface{}) error {
	var raw []byte
	if err := c.rows.Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, val)
}

func (c *cursor) Err() error {
	return c.rows.Err()
}

func (c *cursor) Close(context.Context) error {
	c.rows.Close()
	return nil
}
