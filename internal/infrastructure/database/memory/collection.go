// Package memory is an in-process docstore.Collection used for local runs
// and tests. Documents are held as JSON objects, so the same struct tags that
// drive the HTTP payloads decide the stored field names.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"customer-service/internal/pkg/docstore"
)

type document map[string]interface{}

type Collection struct {
	mu      sync.RWMutex
	name    string
	docs    map[string]document
	indexes map[string]docstore.IndexDefinition
	logger  *slog.Logger
}

var _ docstore.Collection = (*Collection)(nil)

func NewCollection(name string, logger *slog.Logger) *Collection {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Collection{
		name:    name,
		docs:    make(map[string]document),
		indexes: make(map[string]docstore.IndexDefinition),
		logger:  logger.With("component", "MemoryCollection", "collection", name),
	}
}

func (c *Collection) Get(ctx context.Context, id string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	doc, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		return docstore.ErrNoDocument
	}
	return decode(doc, out)
}

func (c *Collection) Contains(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.docs[id]
	return ok, nil
}

func (c *Collection) Insert(ctx context.Context, id string, in interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := encode(in)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return "", docstore.ErrDocumentExists
	}
	if err := c.checkUnique(id, doc); err != nil {
		return "", err
	}

	rev := docstore.NextRevision("")
	doc[docstore.IDField] = id
	doc[docstore.RevField] = rev
	c.docs[id] = doc
	c.logger.DebugContext(ctx, "Document inserted", "id", id, "rev", rev)
	return rev, nil
}

func (c *Collection) Update(ctx context.Context, id, rev string, in interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := encode(in)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.docs[id]
	if !ok {
		return "", docstore.ErrNoDocument
	}
	if current[docstore.RevField] != rev {
		return "", docstore.ErrRevisionConflict
	}
	if err := c.checkUnique(id, doc); err != nil {
		return "", err
	}

	newRev := docstore.NextRevision(rev)
	doc[docstore.IDField] = id
	doc[docstore.RevField] = newRev
	c.docs[id] = doc
	c.logger.DebugContext(ctx, "Document updated", "id", id, "rev", newRev)
	return newRev, nil
}

func (c *Collection) Remove(ctx context.Context, id, rev string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.docs[id]
	if !ok {
		return docstore.ErrNoDocument
	}
	if current[docstore.RevField] != rev {
		return docstore.ErrRevisionConflict
	}
	delete(c.docs, id)
	c.logger.DebugContext(ctx, "Document removed", "id", id)
	return nil
}

func (c *Collection) Query(ctx context.Context, sel docstore.Selector) (docstore.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	want, err := normalize(sel.Value)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	ids := make([]string, 0, len(c.docs))
	for id, doc := range c.docs {
		if matches(doc, sel.Field, sel.Operator, want) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	batch := make([]document, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, c.docs[id])
	}
	c.mu.RUnlock()

	return &cursor{docs: batch, pos: -1}, nil
}

func (c *Collection) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.indexes[name]
	return ok, nil
}

func (c *Collection) CreateIndex(ctx context.Context, def docstore.IndexDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[def.Name]; ok {
		return nil
	}
	if def.Unique {
		seen := make(map[string]string)
		for id, doc := range c.docs {
			v, ok := doc[def.Field]
			if !ok || v == nil {
				continue
			}
			key := fmt.Sprintf("%T:%v", v, v)
			if other, dup := seen[key]; dup {
				return fmt.Errorf("%w: %s shared by %s and %s", docstore.ErrDuplicateKey, def.Field, other, id)
			}
			seen[key] = id
		}
	}
	c.indexes[def.Name] = def
	c.logger.InfoContext(ctx, "Index created", "index", def.Name, "field", def.Field, "unique", def.Unique)
	return nil
}

func (c *Collection) Info(ctx context.Context) error {
	return ctx.Err()
}

// checkUnique must be called with the write lock held.
func (c *Collection) checkUnique(id string, doc document) error {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		v, ok := doc[idx.Field]
		if !ok || v == nil {
			continue
		}
		for otherID, other := range c.docs {
			if otherID == id {
				continue
			}
			if reflect.DeepEqual(other[idx.Field], v) {
				return fmt.Errorf("%w: index %s", docstore.ErrDuplicateKey, idx.Name)
			}
		}
	}
	return nil
}

func matches(doc document, field string, op docstore.Operator, want interface{}) bool {
	got, ok := doc[field]
	switch op {
	case docstore.OpEq:
		return ok && reflect.DeepEqual(got, want)
	case docstore.OpGt:
		if !ok {
			return false
		}
		if want == nil {
			return true
		}
		return compare(got, want) > 0
	}
	return false
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	return -1
}

func encode(in interface{}) (document, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("document must encode to a JSON object: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document must encode to a JSON object")
	}
	return doc, nil
}

func decode(doc document, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// normalize passes a selector value through JSON so it compares equal to
// stored values of the same logical content.
func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", docstore.ErrInvalidSelector, err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type cursor struct {
	docs []document
	pos  int
	err  error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Decode(val interface{}) error {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return fmt.Errorf("cursor is not positioned on a document")
	}
	return decode(c.docs[c.pos], val)
}

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close(context.Context) error {
	c.docs = nil
	return nil
}
