package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"customer-service/internal/pkg/docstore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection adapts a MongoDB collection to docstore.Collection. Revisions are
// kept in a "_rev" field and every write filters on it, so a stale revision
// matches nothing.
type Collection struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ docstore.Collection = (*Collection)(nil)

const duplicateKeyCode = 11000

func NewCollection(client *mongo.Client, database, name string, logger *slog.Logger) *Collection {
	if client == nil {
		panic("mongo client cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Collection{
		coll:   client.Database(database).Collection(name),
		logger: logger.With("component", "MongoCollection", "collection", name),
	}
}

func (c *Collection) Get(ctx context.Context, id string, out interface{}) error {
	err := c.coll.FindOne(ctx, bson.M{docstore.IDField: id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNoDocument
	}
	return err
}

func (c *Collection) Contains(ctx context.Context, id string) (bool, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{docstore.IDField: id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Collection) Insert(ctx context.Context, id string, doc interface{}) (string, error) {
	body, err := toBSON(doc)
	if err != nil {
		return "", err
	}
	rev := docstore.NextRevision("")
	body[docstore.IDField] = id
	body[docstore.RevField] = rev

	if _, err := c.coll.InsertOne(ctx, body); err != nil {
		return "", classifyWriteError(err)
	}
	return rev, nil
}

func (c *Collection) Update(ctx context.Context, id, rev string, doc interface{}) (string, error) {
	body, err := toBSON(doc)
	if err != nil {
		return "", err
	}
	newRev := docstore.NextRevision(rev)
	body[docstore.IDField] = id
	body[docstore.RevField] = newRev

	res, err := c.coll.ReplaceOne(ctx, revisionFilter(id, rev), body)
	if err != nil {
		return "", classifyWriteError(err)
	}
	if res.MatchedCount == 0 {
		return "", c.missOrConflict(ctx, id)
	}
	return newRev, nil
}

func (c *Collection) Remove(ctx context.Context, id, rev string) error {
	res, err := c.coll.DeleteOne(ctx, revisionFilter(id, rev))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return c.missOrConflict(ctx, id)
	}
	return nil
}

func (c *Collection) Query(ctx context.Context, sel docstore.Selector) (docstore.Cursor, error) {
	filter, err := buildFilter(sel)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "Running query", "field", sel.Field, "operator", sel.Operator)
	cur, err := c.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: docstore.IDField, Value: 1}}))
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c *Collection) IndexExists(ctx context.Context, name string) (bool, error) {
	specs, err := c.coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return false, err
	}
	for _, spec := range specs {
		if spec.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (c *Collection) CreateIndex(ctx context.Context, def docstore.IndexDefinition) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: def.Field, Value: 1}},
		Options: options.Index().SetName(def.Name).SetUnique(def.Unique),
	}
	name, err := c.coll.Indexes().CreateOne(ctx, model)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %w", docstore.ErrDuplicateKey, err)
		}
		return err
	}
	c.logger.InfoContext(ctx, "Index created", "index", name, "field", def.Field, "unique", def.Unique)
	return nil
}

func (c *Collection) Info(ctx context.Context) error {
	return c.coll.Database().Client().Ping(ctx, readpref.PrimaryPreferred())
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

func revisionFilter(id, rev string) bson.M {
	return bson.M{docstore.IDField: id, docstore.RevField: rev}
}

// buildFilter turns a selector into a BSON filter. The value always sits in
// an operator document, so it is never interpreted as a query expression.
func buildFilter(sel docstore.Selector) (bson.M, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	switch sel.Operator {
	case docstore.OpGt:
		var v interface{} = primitive.MinKey{}
		if sel.Value != nil {
			v = sel.Value
		}
		return bson.M{sel.Field: bson.M{"$gt": v}}, nil
	default:
		return bson.M{sel.Field: bson.M{"$eq": sel.Value}}, nil
	}
}

func toBSON(doc interface{}) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var body bson.M
	if err := bson.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return body, nil
}

// classifyWriteError separates a clash on the primary key from a clash on a
// unique secondary index.
func classifyWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if clashesOnPrimaryKey(err) {
		return fmt.Errorf("%w: %w", docstore.ErrDocumentExists, err)
	}
	return fmt.Errorf("%w: %w", docstore.ErrDuplicateKey, err)
}

// clashesOnPrimaryKey reads the keyPattern the server attaches to a
// duplicate key write error.
func clashesOnPrimaryKey(err error) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code != duplicateKeyCode {
			continue
		}
		keyPattern, ok := e.Raw.Lookup("keyPattern").DocumentOK()
		if !ok {
			continue
		}
		if _, lookupErr := keyPattern.LookupErr(docstore.IDField); lookupErr == nil {
			return true
		}
	}
	return false
}
