// Package docstore defines the document-collection capability the customer
// core depends on. Adapters live under internal/infrastructure/database.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

const (
	// IDField and RevField are the store-managed keys present on every document.
	IDField  = "_id"
	RevField = "_rev"
)

var (
	ErrNoDocument = errors.New("document not found")

	// ErrRevisionConflict is returned when the supplied revision is not the
	// current one for the document.
	ErrRevisionConflict = errors.New("document update conflict")

	ErrDocumentExists = errors.New("document already exists")

	// ErrDuplicateKey is returned when a write violates a unique secondary index.
	ErrDuplicateKey = errors.New("duplicate key for unique index")

	ErrInvalidSelector = errors.New("invalid selector")
)

// Cursor iterates over query results. *mongo.Cursor satisfies it as-is.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// Collection is a handle to one document collection.
type Collection interface {
	// Get decodes the document with the given id into out, or returns ErrNoDocument.
	Get(ctx context.Context, id string, out interface{}) error

	Contains(ctx context.Context, id string) (bool, error)

	// Insert stores doc under id and returns the first revision.
	Insert(ctx context.Context, id string, doc interface{}) (string, error)

	// Update replaces the document only if rev is current and returns the new revision.
	Update(ctx context.Context, id, rev string, doc interface{}) (string, error)

	Remove(ctx context.Context, id, rev string) error

	Query(ctx context.Context, sel Selector) (Cursor, error)

	IndexExists(ctx context.Context, name string) (bool, error)

	CreateIndex(ctx context.Context, def IndexDefinition) error

	// Info is a liveness check against the backing store.
	Info(ctx context.Context) error
}

type Operator string

const (
	OpEq Operator = "$eq"
	OpGt Operator = "$gt"
)

// Selector is a single structured predicate over a document field. Values are
// always passed to the store as parameters, never spliced into query text.
// A nil Value with OpGt means "greater than the minimum key", i.e. match all.
type Selector struct {
	Field    string
	Operator Operator
	Value    interface{}
}

func Eq(field string, value interface{}) Selector {
	return Selector{Field: field, Operator: OpEq, Value: value}
}

// All selects every document: _id greater than the minimum sentinel.
func All() Selector {
	return Selector{Field: IDField, Operator: OpGt, Value: nil}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (s Selector) Validate() error {
	if !fieldPattern.MatchString(s.Field) {
		return fmt.Errorf("%w: field %q", ErrInvalidSelector, s.Field)
	}
	switch s.Operator {
	case OpEq:
		if s.Value == nil {
			return fmt.Errorf("%w: %s requires a value", ErrInvalidSelector, s.Operator)
		}
	case OpGt:
	default:
		return fmt.Errorf("%w: operator %q", ErrInvalidSelector, s.Operator)
	}
	return nil
}

// IndexDefinition describes a single-field secondary index.
type IndexDefinition struct {
	Name   string
	Field  string
	Unique bool
}
