package monitoring

import (
	"context"
	"errors"
	"time"

	"customer-service/internal/pkg/docstore"
)

// InstrumentedCollection records the latency and outcome of every call to
// the wrapped collection.
type InstrumentedCollection struct {
	next docstore.Collection
}

var _ docstore.Collection = (*InstrumentedCollection)(nil)

func NewInstrumentedCollection(next docstore.Collection) *InstrumentedCollection {
	if next == nil {
		panic("collection cannot be nil")
	}
	return &InstrumentedCollection{next: next}
}

func observe(operation string, start time.Time, err error) {
	RecordStoreOperation(operation, statusOf(err), time.Since(start))
}

// statusOf keeps expected outcomes such as a missing document apart from
// genuine failures.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, docstore.ErrNoDocument):
		return "not_found"
	case errors.Is(err, docstore.ErrRevisionConflict),
		errors.Is(err, docstore.ErrDocumentExists),
		errors.Is(err, docstore.ErrDuplicateKey):
		return "conflict"
	default:
		return "error"
	}
}

func (c *InstrumentedCollection) Get(ctx context.Context, id string, out interface{}) (err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())
	return c.next.Get(ctx, id, out)
}

func (c *InstrumentedCollection) Contains(ctx context.Context, id string) (ok bool, err error) {
	defer func(start time.Time) { observe("contains", start, err) }(time.Now())
	return c.next.Contains(ctx, id)
}

func (c *InstrumentedCollection) Insert(ctx context.Context, id string, doc interface{}) (rev string, err error) {
	defer func(start time.Time) { observe("insert", start, err) }(time.Now())
	return c.next.Insert(ctx, id, doc)
}

func (c *InstrumentedCollection) Update(ctx context.Context, id, rev string, doc interface{}) (newRev string, err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())
	return c.next.Update(ctx, id, rev, doc)
}

func (c *InstrumentedCollection) Remove(ctx context.Context, id, rev string) (err error) {
	defer func(start time.Time) { observe("remove", start, err) }(time.Now())
	return c.next.Remove(ctx, id, rev)
}

func (c *InstrumentedCollection) Query(ctx context.Context, sel docstore.Selector) (cur docstore.Cursor, err error) {
	defer func(start time.Time) { observe("query", start, err) }(time.Now())
	return c.next.Query(ctx, sel)
}

func (c *InstrumentedCollection) IndexExists(ctx context.Context, name string) (ok bool, err error) {
	defer func(start time.Time) { observe("index_exists", start, err) }(time.Now())
	return c.next.IndexExists(ctx, name)
}

func (c *InstrumentedCollection) CreateIndex(ctx context.Context, def docstore.IndexDefinition) (err error) {
	defer func(start time.Time) { observe("create_index", start, err) }(time.Now())
	return c.next.CreateIndex(ctx, def)
}

func (c *InstrumentedCollection) Info(ctx context.Context) (err error) {
	defer func(start time.Time) {
		observe("info", start, err)
		SetStoreUp(err == nil)
	}(time.Now())
	return c.next.Info(ctx)
}
