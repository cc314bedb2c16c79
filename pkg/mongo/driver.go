package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// Driver opens odm collections on a MongoDB database.
type Driver struct {
	db *mongo.Database
}

// NewDriver wraps db.
func NewDriver(db *mongo.Database) *Driver {
	return &Driver{db: db}
}

// Collection implements odm.Driver.
func (d *Driver) Collection(name string) odm.Collection {
	return &collection{coll: d.db.Collection(name)}
}

// collection adapts a driver collection to odm.Collection. Driver errors are
// returned unchanged; ErrNoDocuments becomes a nil document.
type collection struct {
	coll *mongo.Collection
}

func (c *collection) Find(ctx context.Context, filter bson.M, opts odm.FindOptions) ([]bson.M, error) {
	cur, err := c.coll.Find(ctx, filter, FindOptions(opts))
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *collection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	return decodeOne(c.coll.FindOne(ctx, filter))
}

func (c *collection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	return c.coll.CountDocuments(ctx, filter)
}

func (c *collection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	return c.coll.EstimatedDocumentCount(ctx)
}

func (c *collection) InsertMany(ctx context.Context, docs []bson.M) error {
	_, err := c.coll.InsertMany(ctx, docs)
	return err
}

func (c *collection) UpdateOne(ctx context.Context, filter, update bson.M) (odm.UpdateResult, error) {
	return updateResult(c.coll.UpdateOne(ctx, filter, update))
}

func (c *collection) UpdateMany(ctx context.Context, filter, update bson.M) (odm.UpdateResult, error) {
	return updateResult(c.coll.UpdateMany(ctx, filter, update))
}

func (c *collection) ReplaceOne(ctx context.Context, filter, replacement bson.M) (odm.UpdateResult, error) {
	return updateResult(c.coll.ReplaceOne(ctx, filter, replacement))
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *collection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *collection) FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error) {
	return decodeOne(c.coll.FindOneAndDelete(ctx, filter))
}

func (c *collection) FindOneAndUpdate(ctx context.Context, filter, update bson.M) (bson.M, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne(c.coll.FindOneAndUpdate(ctx, filter, update, opts))
}

func (c *collection) FindOneAndReplace(ctx context.Context, filter, replacement bson.M) (bson.M, error) {
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	return decodeOne(c.coll.FindOneAndReplace(ctx, filter, replacement, opts))
}

func (c *collection) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	if pipeline == nil {
		pipeline = []bson.M{}
	}
	cur, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *collection) CreateIndexes(ctx context.Context, indexes []odm.Index) error {
	if len(indexes) == 0 {
		return nil
	}
	_, err := c.coll.Indexes().CreateMany(ctx, IndexModels(indexes))
	return err
}

func decodeOne(res *mongo.SingleResult) (bson.M, error) {
	var doc bson.M
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func updateResult(res *mongo.UpdateResult, err error) (odm.UpdateResult, error) {
	if err != nil {
		return odm.UpdateResult{}, err
	}
	return odm.UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}
