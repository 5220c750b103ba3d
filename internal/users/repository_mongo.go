package users

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fabline/fabline/internal/platform/mongodb"
)

// MongoRepository provides MongoDB backed persistence.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository constructs a repository.
func NewMongoRepository(database *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: database.Collection(mongodb.CollectionUsers)}
}

// Get returns one user by id.
func (r *MongoRepository) Get(ctx context.Context, id string) (*User, error) {
	var u User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mongodb.Wrap("get user", err)
	}
	return &u, nil
}

// FindByEmail returns one user by email, case-insensitively.
func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	filter := bson.M{"email": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(email) + "$", Options: "i"}}
	var u User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mongodb.Wrap("find user by email", err)
	}
	return &u, nil
}

// ListByRoles returns active users holding any of roles.
func (r *MongoRepository) ListByRoles(ctx context.Context, roles []Role) ([]User, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"active": true, "role": bson.M{"$in": roles}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, mongodb.Wrap("list users by role", err)
	}
	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongodb.Wrap("decode users", err)
	}
	return out, nil
}
