package customer

import (
	"context"
	"iter"
	"log/slog"

	"customer-service/internal/pkg/apperrors"
	"customer-service/internal/pkg/docstore"
)

// QueryBuilder turns typed lookups into structured selectors and decodes the
// results into Customer values.
type QueryBuilder struct {
	coll   docstore.Collection
	logger *slog.Logger
}

func NewQueryBuilder(coll docstore.Collection, logger *slog.Logger) *QueryBuilder {
	if coll == nil {
		panic("collection cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &QueryBuilder{
		coll:   coll,
		logger: logger.With("component", "QueryBuilder"),
	}
}

// FindAll yields every stored customer. Each range over the returned sequence
// issues a fresh query. On failure it yields a single error and stops.
func (q *QueryBuilder) FindAll(ctx context.Context) iter.Seq2[*Customer, error] {
	return q.stream(ctx, docstore.All())
}

func (q *QueryBuilder) FindByUsername(ctx context.Context, username string) ([]*Customer, error) {
	return q.collect(ctx, docstore.Eq(UsernameIndexField, username))
}

func (q *QueryBuilder) FindByID(ctx context.Context, id string) ([]*Customer, error) {
	return q.collect(ctx, docstore.Eq(docstore.IDField, id))
}

func (q *QueryBuilder) collect(ctx context.Context, sel docstore.Selector) ([]*Customer, error) {
	customers := make([]*Customer, 0)
	for c, err := range q.stream(ctx, sel) {
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	q.logger.DebugContext(ctx, "Query completed", "field", sel.Field, slog.Int("count", len(customers)))
	return customers, nil
}

func (q *QueryBuilder) stream(ctx context.Context, sel docstore.Selector) iter.Seq2[*Customer, error] {
	return func(yield func(*Customer, error) bool) {
		cur, err := q.coll.Query(ctx, sel)
		if err != nil {
			q.logger.ErrorContext(ctx, "Query failed", "field", sel.Field, slog.Any("error", err))
			yield(nil, apperrors.WrapStoreError(apperrors.ErrQueryFailure, err, "failed to query customers"))
			return
		}
		defer func() {
			if cerr := cur.Close(ctx); cerr != nil {
				q.logger.WarnContext(ctx, "Failed to close cursor", slog.Any("error", cerr))
			}
		}()

		for cur.Next(ctx) {
			var c Customer
			if err := cur.Decode(&c); err != nil {
				q.logger.ErrorContext(ctx, "Failed to decode customer document", slog.Any("error", err))
				yield(nil, apperrors.WrapStoreError(apperrors.ErrQueryFailure, err, "failed to decode customer"))
				return
			}
			if !yield(&c, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			q.logger.ErrorContext(ctx, "Cursor failed", slog.Any("error", err))
			yield(nil, apperrors.WrapStoreError(apperrors.ErrQueryFailure, err, "failed to iterate customers"))
		}
	}
}
