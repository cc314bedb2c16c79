package odm

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Driver opens collections on the underlying document store.
type Driver interface {
	Collection(name string) Collection
}

// FindOptions narrows a Find call.
type FindOptions struct {
	Sort  bson.D
	Limit int64
	Skip  int64
}

// UpdateResult reports the outcome of an update or replace.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// Collection is the narrow store interface models are compiled against.
// Implementations must return store errors unchanged and report "no document"
// single-result lookups as a nil document with a nil error.
type Collection interface {
	Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error)
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	EstimatedDocumentCount(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, docs []bson.M) error
	UpdateOne(ctx context.Context, filter, update bson.M) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update bson.M) (UpdateResult, error)
	ReplaceOne(ctx context.Context, filter, replacement bson.M) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error)
	FindOneAndUpdate(ctx context.Context, filter, update bson.M) (bson.M, error)
	FindOneAndReplace(ctx context.Context, filter, replacement bson.M) (bson.M, error)
	Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error)
	CreateIndexes(ctx context.Context, indexes []Index) error
}
