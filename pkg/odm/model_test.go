package odm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/logger"
	"github.com/dmitrymomot/mongotenant/pkg/memstore"
	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

func newDB() (*odm.DB, *memstore.Store) {
	store := memstore.New()
	return odm.NewDB(store, odm.WithLogger(logger.Discard())), store
}

func register(t *testing.T, db *odm.DB, name string, s *odm.Schema, opts ...odm.ModelOption) odm.Model {
	t.Helper()
	m, err := db.Register(name, s, opts...)
	require.NoError(t, err)
	return m
}

func TestModel_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, _ := newDB()
	m := register(t, db, "Item", odm.NewSchema(odm.Field{Name: "name"}, odm.Field{Name: "n"}))

	docs, err := m.InsertMany(ctx, bson.M{"name": "a", "n": 1}, bson.M{"name": "b", "n": 2}, bson.M{"name": "c", "n": 3})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.False(t, docs[0].IsNew())

	found, err := m.Find(ctx, bson.M{"n": bson.M{"$gte": 2}}, odm.WithSort(bson.D{{Key: "n", Value: -1}}), odm.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c", found[0].Get("name"))
	assert.Same(t, m, found[0].Model())

	found, err = m.Find(ctx, bson.M{}, odm.WithSort(bson.D{{Key: "n", Value: 1}}), odm.WithSkip(2))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c", found[0].Get("name"))

	one, err := m.FindOne(ctx, bson.M{"name": "missing"})
	require.NoError(t, err)
	assert.Nil(t, one)

	n, err := m.Count(ctx, bson.M{"n": bson.M{"$lt": 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err := m.UpdateMany(ctx, bson.M{}, bson.M{"flag": true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.ModifiedCount)

	res, err = m.Update(ctx, bson.M{}, bson.M{"$set": bson.M{"flag": false}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MatchedCount)

	updated, err := m.FindOneAndUpdate(ctx, bson.M{"name": "a"}, bson.M{"n": 10})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Get("n"))

	deleted, err := m.FindOneAndRemove(ctx, bson.M{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", deleted.Get("name"))

	removed, err := m.Remove(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err = m.EstimatedDocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestModel_UpdateNormalization(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("plain fields are merged into set", func(t *testing.T) {
		t.Parallel()

		db, _ := newDB()
		m := register(t, db, "Item", odm.NewSchema())
		_, err := m.InsertMany(ctx, bson.M{"_id": 1, "a": 1, "b": 1})
		require.NoError(t, err)

		_, err = m.UpdateOne(ctx, bson.M{"_id": 1}, bson.M{"a": 2, "$set": bson.M{"c": 3}})
		require.NoError(t, err)

		doc, err := m.FindOne(ctx, bson.M{"_id": 1})
		require.NoError(t, err)
		assert.Equal(t, bson.M{"_id": 1, "a": 2, "b": 1, "c": 3}, doc.Fields())
	})

	t.Run("overwrite replaces the document", func(t *testing.T) {
		t.Parallel()

		db, _ := newDB()
		m := register(t, db, "Item", odm.NewSchema())
		_, err := m.InsertMany(ctx, bson.M{"_id": 1, "a": 1, "b": 1})
		require.NoError(t, err)

		_, err = m.UpdateOne(ctx, bson.M{"_id": 1}, bson.M{"a": 2}, odm.WithOverwrite())
		require.NoError(t, err)

		doc, err := m.FindOne(ctx, bson.M{"_id": 1})
		require.NoError(t, err)
		assert.Equal(t, bson.M{"_id": 1, "a": 2}, doc.Fields())

		doc, err = m.FindOneAndUpdate(ctx, bson.M{"_id": 1}, bson.M{"z": 1}, odm.WithOverwrite())
		require.NoError(t, err)
		assert.Equal(t, bson.M{"_id": 1, "z": 1}, doc.Fields())
	})

	t.Run("overwrite rejects operators", func(t *testing.T) {
		t.Parallel()

		db, _ := newDB()
		m := register(t, db, "Item", odm.NewSchema())
		_, err := m.UpdateOne(ctx, bson.M{}, bson.M{"$set": bson.M{"a": 1}}, odm.WithOverwrite())
		assert.ErrorIs(t, err, odm.ErrInvalidUpdate)
	})

	t.Run("overwrite cannot target many", func(t *testing.T) {
		t.Parallel()

		db, _ := newDB()
		m := register(t, db, "Item", odm.NewSchema())
		_, err := m.UpdateMany(ctx, bson.M{}, bson.M{"a": 1}, odm.WithOverwrite())
		assert.ErrorIs(t, err, odm.ErrInvalidUpdate)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		t.Parallel()

		db, _ := newDB()
		m := register(t, db, "Item", odm.NewSchema())
		_, err := m.InsertMany(ctx, bson.M{"_id": 1})
		require.NoError(t, err)

		res, err := m.UpdateOne(ctx, bson.M{"_id": 1}, bson.M{})
		require.NoError(t, err)
		assert.Equal(t, odm.UpdateResult{}, res)

		doc, err := m.FindOneAndUpdate(ctx, bson.M{"_id": 1}, bson.M{})
		require.NoError(t, err)
		assert.Equal(t, 1, doc.ID())
	})
}

func TestModel_QueryHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls []string
	s := odm.NewSchema()
	s.PreQuery(func(_ context.Context, q *odm.Query) error {
		calls = append(calls, "first:"+string(q.Op))
		q.Filter["scope"] = "a"
		return nil
	}, odm.OpFind, odm.OpCount)
	s.PreQuery(func(_ context.Context, q *odm.Query) error {
		calls = append(calls, "second:"+string(q.Op))
		return nil
	}, odm.OpFind)

	db, _ := newDB()
	m := register(t, db, "Item", s)
	_, err := m.InsertMany(ctx, bson.M{"scope": "a"}, bson.M{"scope": "b"})
	require.NoError(t, err)

	filter := bson.M{"scope": "b"}
	docs, err := m.Find(ctx, filter)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].Get("scope"))
	assert.Equal(t, bson.M{"scope": "b"}, filter)

	n, err := m.Count(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = m.DeleteMany(ctx, bson.M{"scope": "none"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first:find", "second:find", "first:count"}, calls)
}

func TestModel_HookErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	boom := errors.New("boom")
	s := odm.NewSchema()
	s.PreQuery(func(context.Context, *odm.Query) error { return boom }, odm.OpFind)
	s.PreDocument(func(context.Context, *odm.Document) error { return boom }, odm.OpSave)

	db, store := newDB()
	m := register(t, db, "Item", s)

	_, err := m.Find(ctx, bson.M{})
	assert.ErrorIs(t, err, boom)

	err = m.New(nil).Save(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Raw("items").Len())
}

func TestModel_DocumentHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := odm.NewSchema()
	s.PreDocument(func(_ context.Context, doc *odm.Document) error {
		doc.Set("stamped", true)
		return nil
	}, odm.OpSave, odm.OpUpdateOne)

	db, _ := newDB()
	m := register(t, db, "Item", s)

	doc := m.New(bson.M{"a": 1})
	require.NoError(t, doc.Save(ctx))
	stored, err := m.FindOne(ctx, bson.M{"_id": doc.ID()})
	require.NoError(t, err)
	assert.Equal(t, true, stored.Get("stamped"))

	stored.Set("stamped", false)
	_, err = stored.UpdateOne(ctx, bson.M{"$set": bson.M{"b": 2}})
	require.NoError(t, err)
	assert.Equal(t, true, stored.Get("stamped"))
}

func TestModel_Executor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var seen odm.Model
	s := odm.NewSchema()
	s.PreQuery(func(_ context.Context, q *odm.Query) error {
		seen = q.Model
		return nil
	}, odm.OpFind)

	db, _ := newDB()
	m := register(t, db, "Item", s)
	other := register(t, db, "Other", odm.NewSchema())
	w := &wrapper{Model: m}

	_, err := m.Find(odm.WithExecutor(ctx, w), bson.M{})
	require.NoError(t, err)
	assert.Same(t, w, seen)

	_, err = m.Find(odm.WithExecutor(ctx, &wrapper{Model: other}), bson.M{})
	require.NoError(t, err)
	assert.Same(t, m, seen)

	_, ok := odm.ExecutorFromContext(ctx)
	assert.False(t, ok)
}

type wrapper struct {
	odm.Model
}

func TestModel_Discriminators(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := odm.NewSchema(odm.Field{Name: "name"}).Static("kind", "animal")
	db, _ := newDB()
	animals := register(t, db, "Animal", base)

	dogs, err := animals.Discriminator("Dog", odm.NewSchema(odm.Field{Name: "breed", Required: true}))
	require.NoError(t, err)
	cats, err := animals.Discriminator("Cat", odm.NewSchema(), odm.WithDiscriminatorValue("feline"))
	require.NoError(t, err)

	_, err = animals.Discriminator("Dog", odm.NewSchema())
	assert.ErrorIs(t, err, odm.ErrModelExists)

	registered, err := db.Model("Dog")
	require.NoError(t, err)
	assert.Same(t, dogs, registered)

	_, err = dogs.InsertMany(ctx, bson.M{"name": "rex"})
	var verr *odm.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = dogs.InsertMany(ctx, bson.M{"name": "rex", "breed": "lab", "__t": "Cat"})
	require.NoError(t, err)
	_, err = cats.InsertMany(ctx, bson.M{"name": "tom"})
	require.NoError(t, err)
	_, err = animals.InsertMany(ctx, bson.M{"name": "generic"})
	require.NoError(t, err)

	all, err := animals.Find(ctx, bson.M{}, odm.WithSort(bson.D{{Key: "name", Value: 1}}))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Same(t, animals, all[0].Model())
	assert.Same(t, dogs, all[1].Model())
	assert.Equal(t, "Dog", all[1].Get("__t"))
	assert.Same(t, cats, all[2].Model())
	assert.Equal(t, "feline", all[2].Get("__t"))

	n, err := dogs.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = cats.EstimatedDocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	agg, err := dogs.Aggregate(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, agg, 1)

	v, ok := dogs.Static("kind")
	require.True(t, ok)
	assert.Equal(t, "animal", v)

	field, ok := dogs.Schema().Path("name")
	require.True(t, ok)
	assert.Equal(t, "name", field.Name)

	assert.Len(t, animals.Discriminators(), 2)
}

func TestModel_Populate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, _ := newDB()
	authors := register(t, db, "Author", odm.NewSchema(odm.Field{Name: "name"}))
	posts := register(t, db, "Post", odm.NewSchema(
		odm.Field{Name: "author", Ref: "Author"},
		odm.Field{Name: "coauthors", Ref: "Author"},
		odm.Field{Name: "ghost", Ref: "Ghost"},
		odm.Field{Name: "title"},
	))

	people, err := authors.InsertMany(ctx, bson.M{"name": "ann"}, bson.M{"name": "bob"})
	require.NoError(t, err)

	post := posts.New(bson.M{
		"title":     "hello",
		"author":    people[0].ID(),
		"coauthors": []bson.ObjectID{people[1].ID().(bson.ObjectID), people[0].ID().(bson.ObjectID)},
	})
	require.NoError(t, post.Save(ctx))

	loaded, err := posts.FindOne(ctx, bson.M{"title": "hello"})
	require.NoError(t, err)
	require.NoError(t, loaded.Populate(ctx, "author", "coauthors"))

	author, ok := loaded.Get("author").(*odm.Document)
	require.True(t, ok)
	assert.Equal(t, "ann", author.Get("name"))

	co, ok := loaded.Get("coauthors").([]*odm.Document)
	require.True(t, ok)
	require.Len(t, co, 2)
	assert.Equal(t, "bob", co[0].Get("name"))
	assert.Equal(t, "ann", co[1].Get("name"))

	loaded.Set("author", people[1].ID())
	assert.Equal(t, people[1].ID(), loaded.Get("author"))

	err = loaded.Populate(ctx, "title")
	assert.ErrorIs(t, err, odm.ErrNotReference)

	loaded.Set("ghost", bson.NewObjectID())
	err = loaded.Populate(ctx, "ghost")
	assert.ErrorIs(t, err, odm.ErrModelNotFound)
}

func TestModel_StoreErrorsPassThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storeErr := errors.New("write conflict")
	coll := &mockCollection{}
	coll.On("Find", mock.Anything, bson.M{}, odm.FindOptions{}).Return(nil, storeErr)
	coll.On("InsertMany", mock.Anything, mock.Anything).Return(storeErr)
	coll.On("UpdateOne", mock.Anything, bson.M{"_id": 1}, bson.M{"$set": bson.M{"a": 1}}).Return(odm.UpdateResult{}, storeErr)
	coll.On("Aggregate", mock.Anything, []bson.M(nil)).Return(nil, storeErr)

	db := odm.NewDB(&mockDriver{coll: coll}, odm.WithLogger(logger.Discard()))
	m := register(t, db, "Item", odm.NewSchema())

	_, err := m.Find(ctx, nil)
	assert.Same(t, storeErr, err)

	docs, err := m.InsertMany(ctx, bson.M{"a": 1})
	assert.Same(t, storeErr, err)
	assert.Nil(t, docs)

	_, err = m.UpdateOne(ctx, bson.M{"_id": 1}, bson.M{"a": 1})
	assert.Same(t, storeErr, err)

	_, err = m.Aggregate(ctx, nil)
	assert.Same(t, storeErr, err)

	coll.AssertExpectations(t)
}
