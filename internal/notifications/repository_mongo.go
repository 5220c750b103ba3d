package notifications

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fabline/fabline/internal/platform/mongodb"
)

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository constructs a MongoDB repository.
func NewMongoRepository(database *mongo.Database) Repository {
	return &mongoRepository{coll: database.Collection(mongodb.CollectionNotifications)}
}

func (r *mongoRepository) Create(ctx context.Context, n *Notification) error {
	_, err := r.coll.InsertOne(ctx, n)
	return mongodb.Wrap("insert notification", err)
}

func (r *mongoRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, mongodb.Wrap("list notifications", err)
	}
	var out []Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongodb.Wrap("decode notifications", err)
	}
	return out, nil
}

func (r *mongoRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (*Notification, error) {
	// The pipeline keeps an existing readAt.
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"read":   true,
		"readAt": bson.M{"$ifNull": bson.A{"$readAt", at}},
	}}}}
	var n Notification
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "userId": userID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&n)
	if err != nil {
		return nil, mongodb.Wrap("mark notification read "+id, err)
	}
	return &n, nil
}

func (r *mongoRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": at}})
	if err != nil {
		return 0, mongodb.Wrap("mark all notifications read", err)
	}
	return int(res.ModifiedCount), nil
}

func (r *mongoRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
	if err != nil {
		return 0, mongodb.Wrap("count unread notifications", err)
	}
	return int(n), nil
}
