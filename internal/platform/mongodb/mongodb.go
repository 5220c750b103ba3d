// Package mongodb connects the MongoDB store backend.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by every Mongo repository.
const (
	CollectionUsers         = "users"
	CollectionCounters      = "sequence_counters"
	CollectionInquiries     = "inquiries"
	CollectionQuotations    = "quotations"
	CollectionOrders        = "orders"
	CollectionNotifications = "notifications"
)

// Connect dials uri, pings it and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("platform/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("platform/mongo: ping: %w", err)
	}
	return client, client.Database(database), nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		CollectionUsers: {
			{Keys: bsonD("email", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("role", 1)},
		},
		CollectionInquiries: {
			{Keys: bsonD("inquiryNumber", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("customerId", 1, "createdAt", -1)},
		},
		CollectionQuotations: {
			{Keys: bsonD("quotationNumber", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("inquiryId", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("customerId", 1, "createdAt", -1)},
		},
		CollectionOrders: {
			{Keys: bsonD("orderNumber", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("quotationId", 1), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("customerId", 1, "createdAt", -1)},
		},
		CollectionNotifications: {
			{Keys: bsonD("userId", 1, "createdAt", -1)},
			{Keys: bsonD("userId", 1, "read", 1)},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("platform/mongo: indexes %s: %w", name, err)
		}
	}
	return nil
}
