package sequence

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fabline/fabline/internal/platform/mongodb"
)

type counterDoc struct {
	Entity      string    `bson:"_id"`
	Prefix      string    `bson:"prefix"`
	Separator   string    `bson:"separator"`
	YearSuffix  bool      `bson:"yearSuffix"`
	StartNumber int64     `bson:"startNumber"`
	Current     int64     `bson:"current"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func (d counterDoc) toCounter() Counter {
	return Counter{
		Entity:      Entity(d.Entity),
		Prefix:      d.Prefix,
		Separator:   d.Separator,
		YearSuffix:  d.YearSuffix,
		StartNumber: d.StartNumber,
		Current:     d.Current,
		UpdatedAt:   d.UpdatedAt,
	}
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository constructs a MongoDB counter store.
func NewMongoRepository(database *mongo.Database) Repository {
	return &mongoRepository{coll: database.Collection(mongodb.CollectionCounters)}
}

// Next seeds a missing counter from defaults and increments it in the same
// findAndModify.
func (r *mongoRepository) Next(ctx context.Context, entity Entity, defaults Settings) (Counter, error) {
	return r.findAndModify(ctx, "sequence next", entity, nextPipeline(defaults))
}

func (r *mongoRepository) Configure(ctx context.Context, entity Entity, s Settings) (Counter, error) {
	return r.findAndModify(ctx, "sequence configure", entity, configurePipeline(s))
}

func (r *mongoRepository) findAndModify(ctx context.Context, op string, entity Entity, update mongo.Pipeline) (Counter, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc counterDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": string(entity)}, update, opts).Decode(&doc)
	if err != nil {
		return Counter{}, mongodb.Wrap(op, err)
	}
	return doc.toCounter(), nil
}

func ifNull(field string, fallback any) bson.D {
	return bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, fallback}}}
}

func nextPipeline(defaults Settings) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "prefix", Value: ifNull("prefix", defaults.Prefix)},
			{Key: "separator", Value: ifNull("separator", defaults.Separator)},
			{Key: "yearSuffix", Value: ifNull("yearSuffix", defaults.YearSuffix)},
			{Key: "startNumber", Value: ifNull("startNumber", defaults.StartNumber)},
			{Key: "current", Value: bson.D{{Key: "$add", Value: bson.A{
				ifNull("current", defaults.StartNumber-1),
				int64(1),
			}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
}

func configurePipeline(s Settings) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "prefix", Value: s.Prefix},
			{Key: "separator", Value: s.Separator},
			{Key: "yearSuffix", Value: s.YearSuffix},
			{Key: "startNumber", Value: s.StartNumber},
			{Key: "current", Value: bson.D{{Key: "$max", Value: bson.A{
				ifNull("current", int64(0)),
				s.StartNumber - 1,
			}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
}

func (r *mongoRepository) Get(ctx context.Context, entity Entity) (Counter, error) {
	var doc counterDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": string(entity)}).Decode(&doc); err != nil {
		return Counter{}, mongodb.Wrap("sequence get", err)
	}
	return doc.toCounter(), nil
}

func (r *mongoRepository) List(ctx context.Context) ([]Counter, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mongodb.Wrap("sequence list", err)
	}
	var docs []counterDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongodb.Wrap("sequence list decode", err)
	}
	out := make([]Counter, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCounter())
	}
	return out, nil
}
