package orders

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fabline/fabline/internal/platform/mongodb"
	"github.com/fabline/fabline/internal/shared"
)

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository constructs a MongoDB repository.
func NewMongoRepository(database *mongo.Database) Repository {
	return &mongoRepository{coll: database.Collection(mongodb.CollectionOrders)}
}

func (r *mongoRepository) Create(ctx context.Context, o *Order) error {
	_, err := r.coll.InsertOne(ctx, o)
	if mongodb.IsDuplicateKey(err) {
		return fmt.Errorf("%w: quotation %s already has an order", shared.ErrConcurrencyConflict, o.QuotationID)
	}
	return mongodb.Wrap("insert order", err)
}

func (r *mongoRepository) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mongodb.Wrap("get order "+id, err)
	}
	return &o, nil
}

func (r *mongoRepository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customerId"] = f.CustomerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mongodb.Wrap("count orders", err)
	}
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(shared.Offset(page, perPage))).
		SetLimit(int64(perPage)))
	if err != nil {
		return nil, 0, mongodb.Wrap("list orders", err)
	}
	var out []Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, mongodb.Wrap("decode orders", err)
	}
	return out, int(total), nil
}

func (r *mongoRepository) UpdateIf(ctx context.Context, o *Order, expected Status) (bool, error) {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": o.ID, "status": expected}, o)
	if err != nil {
		return false, mongodb.Wrap("update order", err)
	}
	return res.MatchedCount == 1, nil
}
