package mongodb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fabline/fabline/internal/shared"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))
	assert.ErrorIs(t, Wrap("find order", mongo.ErrNoDocuments), shared.ErrNotFound)

	err := Wrap("insert order", errors.New("connection reset"))
	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.Contains(t, err.Error(), "insert order")
}

func TestBsonD(t *testing.T) {
	doc := bsonD("userId", 1, "createdAt", -1)
	assert.Equal(t, bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, doc)
}
