package customer

import (
	"context"

	"customer-service/internal/event"
	"customer-service/internal/pkg/docstore"

	"github.com/stretchr/testify/mock"
)

type MockCollection struct {
	mock.Mock
}

var _ docstore.Collection = (*MockCollection)(nil)

func (_m *MockCollection) Get(ctx context.Context, id string, out interface{}) error {
	ret := _m.Called(ctx, id, out)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, interface{}) error); ok {
		r0 = rf(ctx, id, out)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCollection) Contains(ctx context.Context, id string) (bool, error) {
	ret := _m.Called(ctx, id)
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockCollection) Insert(ctx context.Context, id string, doc interface{}) (string, error) {
	ret := _m.Called(ctx, id, doc)
	return ret.String(0), ret.Error(1)
}

func (_m *MockCollection) Update(ctx context.Context, id, rev string, doc interface{}) (string, error) {
	ret := _m.Called(ctx, id, rev, doc)
	return ret.String(0), ret.Error(1)
}

func (_m *MockCollection) Remove(ctx context.Context, id, rev string) error {
	ret := _m.Called(ctx, id, rev)
	return ret.Error(0)
}

func (_m *MockCollection) Query(ctx context.Context, sel docstore.Selector) (docstore.Cursor, error) {
	ret := _m.Called(ctx, sel)

	var r0 docstore.Cursor
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(docstore.Cursor)
	}

	return r0, ret.Error(1)
}

func (_m *MockCollection) IndexExists(ctx context.Context, name string) (bool, error) {
	ret := _m.Called(ctx, name)
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockCollection) CreateIndex(ctx context.Context, def docstore.IndexDefinition) error {
	ret := _m.Called(ctx, def)
	return ret.Error(0)
}

func (_m *MockCollection) Info(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

var _ event.EventPublisher = (*MockEventPublisher)(nil)

func (_m *MockEventPublisher) PublishCustomerCreated(ctx context.Context, evt event.CustomerCreatedEvent) error {
	ret := _m.Called(ctx, evt)
	return ret.Error(0)
}

func (_m *MockEventPublisher) PublishCustomerUpdated(ctx context.Context, evt event.CustomerUpdatedEvent) error {
	ret := _m.Called(ctx, evt)
	return ret.Error(0)
}

func (_m *MockEventPublisher) PublishCustomerDeleted(ctx context.Context, evt event.CustomerDeletedEvent) error {
	ret := _m.Called(ctx, evt)
	return ret.Error(0)
}

// StubCursor replays a fixed set of documents, then reports err.
type StubCursor struct {
	Docs   []Customer
	Failed error
	pos    int
	Closed bool
}

func (c *StubCursor) Next(context.Context) bool {
	if c.pos >= len(c.Docs) {
		return false
	}
	c.pos++
	return true
}

func (c *StubCursor) Decode(val interface{}) error {
	*(val.(*Customer)) = c.Docs[c.pos-1]
	return nil
}

func (c *StubCursor) Err() error { return c.Failed }

func (c *StubCursor) Close(context.Context) error {
	c.Closed = true
	return nil
}
