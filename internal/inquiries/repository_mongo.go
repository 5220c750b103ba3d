package inquiries

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
	return &mongoRepository{coll: database.Collection(mongodb.CollectionInquiries)}
}

func (r *mongoRepository) Create(ctx context.Context, inq *Inquiry) error {
	_, err := r.coll.InsertOne(ctx, inq)
	return mongodb.Wrap("insert inquiry", err)
}

func (r *mongoRepository) Get(ctx context.Context, id string) (*Inquiry, error) {
	var inq Inquiry
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&inq); err != nil {
		return nil, mongodb.Wrap("get inquiry "+id, err)
	}
	return &inq, nil
}

func (r *mongoRepository) List(ctx context.Context, f ListFilter) ([]Inquiry, int, error) {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customerId"] = f.CustomerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mongodb.Wrap("count inquiries", err)
	}
	page, perPage := shared.NormalizePage(f.Page, f.PerPage)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(shared.Offset(page, perPage))).
		SetLimit(int64(perPage))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, mongodb.Wrap("list inquiries", err)
	}
	var out []Inquiry
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, mongodb.Wrap("decode inquiries", err)
	}
	return out, int(total), nil
}

func (r *mongoRepository) Update(ctx context.Context, inq *Inquiry) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": inq.ID}, bson.M{"$set": bson.M{
		"parts":               inq.Parts,
		"files":               inq.Files,
		"deliveryAddress":     inq.DeliveryAddress,
		"specialInstructions": inq.SpecialInstructions,
		"status":              inq.Status,
		"updatedAt":           inq.UpdatedAt,
	}})
	if err != nil {
		return mongodb.Wrap("update inquiry", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: inquiry %s", shared.ErrNotFound, inq.ID)
	}
	return nil
}

func (r *mongoRepository) UpdateStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updatedAt": at}})
	if err != nil {
		return false, mongodb.Wrap("update inquiry status", err)
	}
	return res.ModifiedCount > 0, nil
}
