package mongodb

import (
	"errors"
	"testing"
	"time"

	"customer-service/internal/config"
	"customer-service/internal/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBuildFilter(t *testing.T) {
	t.Run("All matches ids above MinKey", func(t *testing.T) {
		filter, err := buildFilter(docstore.All())
		require.NoError(t, err)
		assert.Equal(t, bson.M{"_id": bson.M{"$gt": primitive.MinKey{}}}, filter)
	})

	t.Run("Equality keeps the value inside $eq", func(t *testing.T) {
		hostile := bson.M{"$ne": nil}
		filter, err := buildFilter(docstore.Eq("username", hostile))
		require.NoError(t, err)
		assert.Equal(t, bson.M{"username": bson.M{"$eq": hostile}}, filter)
	})

	t.Run("Rejects operator-like field names", func(t *testing.T) {
		_, err := buildFilter(docstore.Eq("$where", "1"))
		assert.ErrorIs(t, err, docstore.ErrInvalidSelector)
	})
}

func duplicateKeyError(t *testing.T, keyPattern bson.D, message string) mongo.WriteException {
	t.Helper()
	raw, err := bson.Marshal(bson.D{
		{Key: "index", Value: 0},
		{Key: "code", Value: 11000},
		{Key: "keyPattern", Value: keyPattern},
		{Key: "errmsg", Value: message},
	})
	require.NoError(t, err)
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: message,
		Raw:     raw,
	}}}
}

func TestClassifyWriteError(t *testing.T) {
	idClash := duplicateKeyError(t, bson.D{{Key: "_id", Value: 1}}, "E11000 duplicate key error")
	usernameClash := duplicateKeyError(t, bson.D{{Key: "username", Value: 1}}, "E11000 duplicate key error")
	other := errors.New("socket closed")

	assert.ErrorIs(t, classifyWriteError(idClash), docstore.ErrDocumentExists)
	assert.ErrorIs(t, classifyWriteError(usernameClash), docstore.ErrDuplicateKey)
	assert.NotErrorIs(t, classifyWriteError(usernameClash), docstore.ErrDocumentExists)
	assert.Equal(t, other, classifyWriteError(other))
}

func TestClassifyWriteError_IgnoresMessageText(t *testing.T) {
	// The message names _id_ but the key pattern says username.
	misleading := duplicateKeyError(t, bson.D{{Key: "username", Value: 1}}, "index: _id_ dup key")
	assert.ErrorIs(t, classifyWriteError(misleading), docstore.ErrDuplicateKey)

	noPattern := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: customerdb.customers index: _id_ dup key",
	}}}
	assert.ErrorIs(t, classifyWriteError(noPattern), docstore.ErrDuplicateKey)
}

func TestToBSON(t *testing.T) {
	type doc struct {
		ID       string `bson:"_id,omitempty"`
		Username string `bson:"username"`
	}

	body, err := toBSON(doc{Username: "alice"})
	require.NoError(t, err)
	_, hasID := body["_id"]
	assert.False(t, hasID)
	assert.Equal(t, "alice", body["username"])

	_, err = toBSON("not a document")
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(config.StoreConfig{
		URL:      "mongodb://db.internal:27017",
		Username: "svc",
		Password: "pw",
		Timeout:  3 * time.Second,
	})

	require.NotNil(t, opts.Auth)
	assert.Equal(t, "svc", opts.Auth.Username)
	assert.Equal(t, 3*time.Second, *opts.ConnectTimeout)
	assert.Equal(t, uint64(10), *opts.MaxPoolSize)
	assert.Equal(t, "mongodb://db.internal:27017", redact(opts))
}
