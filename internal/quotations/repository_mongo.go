package quotations

import (
	"context"
	"fmt"
	"time"

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
	return &mongoRepository{coll: database.Collection(mongodb.CollectionQuotations)}
}

func (r *mongoRepository) Create(ctx context.Context, q *Quotation) error {
	_, err := r.coll.InsertOne(ctx, q)
	if mongodb.IsDuplicateKey(err) {
		return fmt.Errorf("%w: inquiry %s already has a quotation", shared.ErrConcurrencyConflict, q.InquiryID)
	}
	return mongodb.Wrap("insert quotation", err)
}

func (r *mongoRepository) Get(ctx context.Context, id string) (*Quotation, error) {
	var q Quotation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&q); err != nil {
		return nil, mongodb.Wrap("get quotation "+id, err)
	}
	return &q, nil
}

func (r *mongoRepository) List(ctx context.Context, f ListFilter) ([]Quotation, int, error) {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customerId"] = f.CustomerID
	}
	if f.InquiryID != "" {
		filter["inquiryId"] = f.InquiryID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mongodb.Wrap("count quotations", err)
	}
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(shared.Offset(page, perPage))).
		SetLimit(int64(perPage)))
	if err != nil {
		return nil, 0, mongodb.Wrap("list quotations", err)
	}
	var out []Quotation
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, mongodb.Wrap("decode quotations", err)
	}
	return out, int(total), nil
}

func (r *mongoRepository) UpdateIf(ctx context.Context, q *Quotation, expected Status) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": q.ID, "status": expected},
		bson.M{"$set": bson.M{
			"items":           q.Items,
			"totalAmount":     q.TotalAmount,
			"status":          q.Status,
			"rejectionReason": q.RejectionReason,
			"document":        q.Document,
			"sentAt":          q.SentAt,
			"acceptedAt":      q.AcceptedAt,
			"rejectedAt":      q.RejectedAt,
			"updatedAt":       q.UpdatedAt,
		}})
	if err != nil {
		return false, mongodb.Wrap("update quotation", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *mongoRepository) Claim(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusAccepted},
		bson.M{"$set": bson.M{"status": StatusOrderCreated, "orderId": orderID, "orderCreatedAt": at, "updatedAt": at}})
	if err != nil {
		return false, mongodb.Wrap("claim quotation", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *mongoRepository) Release(ctx context.Context, id, orderID string, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusOrderCreated, "orderId": orderID},
		bson.M{
			"$set":   bson.M{"status": StatusAccepted, "orderId": "", "updatedAt": at},
			"$unset": bson.M{"orderCreatedAt": ""},
		})
	if err != nil {
		return false, mongodb.Wrap("release quotation", err)
	}
	return res.MatchedCount == 1, nil
}
