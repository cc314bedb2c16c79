package odm_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

type mockDriver struct {
	coll *mockCollection
}

func (d *mockDriver) Collection(string) odm.Collection { return d.coll }

type mockCollection struct {
	mock.Mock
}

func docOrNil(v any) bson.M {
	if v == nil {
		return nil
	}
	return v.(bson.M)
}

func (m *mockCollection) Find(ctx context.Context, filter bson.M, opts odm.FindOptions) ([]bson.M, error) {
	args := m.Called(ctx, filter, opts)
	docs, _ := args.Get(0).([]bson.M)
	return docs, args.Error(1)
}

func (m *mockCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	args := m.Called(ctx, filter)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *mockCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCollection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCollection) InsertMany(ctx context.Context, docs []bson.M) error {
	return m.Called(ctx, docs).Error(0)
}

func (m *mockCollection) UpdateOne(ctx context.Context, filter, update bson.M) (odm.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	return args.Get(0).(odm.UpdateResult), args.Error(1)
}

func (m *mockCollection) UpdateMany(ctx context.Context, filter, update bson.M) (odm.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	return args.Get(0).(odm.UpdateResult), args.Error(1)
}

func (m *mockCollection) ReplaceOne(ctx context.Context, filter, replacement bson.M) (odm.UpdateResult, error) {
	args := m.Called(ctx, filter, replacement)
	return args.Get(0).(odm.UpdateResult), args.Error(1)
}

func (m *mockCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCollection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCollection) FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error) {
	args := m.Called(ctx, filter)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *mockCollection) FindOneAndUpdate(ctx context.Context, filter, update bson.M) (bson.M, error) {
	args := m.Called(ctx, filter, update)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *mockCollection) FindOneAndReplace(ctx context.Context, filter, replacement bson.M) (bson.M, error) {
	args := m.Called(ctx, filter, replacement)
	return docOrNil(args.Get(0)), args.Error(1)
}

func (m *mockCollection) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	args := m.Called(ctx, pipeline)
	docs, _ := args.Get(0).([]bson.M)
	return docs, args.Error(1)
}

func (m *mockCollection) CreateIndexes(ctx context.Context, indexes []odm.Index) error {
	return m.Called(ctx, indexes).Error(0)
}
