package tenancy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/logger"
	"github.com/dmitrymomot/mongotenant/pkg/memstore"
	"github.com/dmitrymomot/mongotenant/pkg/odm"
	"github.com/dmitrymomot/mongotenant/pkg/tenancy"
)

func TestBoundModel_InsertMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("conflicting tenants are overwritten", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		bound := byTenant(t, f.model, 1)

		docs, err := bound.InsertMany(ctx,
			bson.M{"tenant": 2},
			bson.M{"tenant": -3},
			bson.M{"tenant": "2"},
		)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		for _, doc := range docs {
			assert.Equal(t, 1, doc.Get("tenant"))
			assert.True(t, tenancy.HasTenantContext(doc))
			assert.False(t, doc.IsNew())
			assert.Same(t, bound, doc.Model())
		}

		stored := f.stored(t)
		require.Len(t, stored, 3)
		for _, doc := range stored {
			assert.Equal(t, 1, doc["tenant"])
		}
	})

	t.Run("caller documents are not mutated", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		input := bson.M{"tenant": "other", "someField": "x"}
		_, err := byTenant(t, f.model, "t1").InsertMany(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, bson.M{"tenant": "other", "someField": "x"}, input)
	})

	t.Run("single document", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		docs, err := byTenant(t, f.model, "t1").InsertMany(ctx, bson.M{})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "t1", docs[0].Get("tenant"))
	})

	t.Run("store errors pass through unchanged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		id := bson.NewObjectID()
		bound := byTenant(t, f.model, "t1")
		_, err := bound.InsertMany(ctx, bson.M{"_id": id})
		require.NoError(t, err)

		_, err = bound.InsertMany(ctx, bson.M{"someField": "ok"}, bson.M{"_id": id})
		require.ErrorIs(t, err, memstore.ErrDuplicateKey)
		assert.Len(t, f.stored(t), 1)
	})

	t.Run("validation errors pass through unchanged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, tenancy.WithRequireTenantID(true))

		_, err := f.model.InsertMany(ctx, bson.M{"someField": "x"})
		var verr *odm.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Errors, "tenant")

		_, err = byTenant(t, f.model, "t1").InsertMany(ctx, bson.M{"someField": "x"})
		assert.NoError(t, err)
	})

	t.Run("async completion", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		bound := byTenant(t, f.model, "t1")
		res := <-odm.Async(func() ([]*odm.Document, error) {
			return bound.InsertMany(ctx, bson.M{"tenant": "t2"})
		})
		require.NoError(t, res.Err)
		require.Len(t, res.Value, 1)
		assert.Equal(t, "t1", res.Value[0].Get("tenant"))
	})
}

func TestBoundModel_Aggregate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	_, err := f.model.InsertMany(ctx,
		bson.M{"tenant": "t1", "n": 1},
		bson.M{"tenant": "t1", "n": 2},
		bson.M{"tenant": "t2", "n": 3},
	)
	require.NoError(t, err)
	bound := byTenant(t, f.model, "t1")

	t.Run("empty pipeline", func(t *testing.T) {
		t.Parallel()

		docs, err := bound.Aggregate(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("leading match is overridden", func(t *testing.T) {
		t.Parallel()

		docs, err := bound.Aggregate(ctx, []bson.M{
			{"$match": bson.M{"tenant": "t2"}},
		})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
		for _, doc := range docs {
			assert.Equal(t, "t1", doc["tenant"])
		}
	})

	t.Run("leading match keeps other conditions", func(t *testing.T) {
		t.Parallel()

		docs, err := bound.Aggregate(ctx, []bson.M{
			{"$match": bson.M{"n": bson.M{"$gte": 2}}},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, 2, docs[0]["n"])
	})

	t.Run("match is prepended", func(t *testing.T) {
		t.Parallel()

		docs, err := bound.Aggregate(ctx, []bson.M{
			{"$sort": bson.M{"n": -1}},
			{"$count": "total"},
		})
		require.NoError(t, err)
		assert.Equal(t, []bson.M{{"total": int32(2)}}, docs)
	})

	t.Run("caller pipeline is not mutated", func(t *testing.T) {
		t.Parallel()

		pipeline := []bson.M{{"$match": bson.M{"n": 1}}}
		_, err := bound.Aggregate(ctx, pipeline)
		require.NoError(t, err)
		assert.Equal(t, []bson.M{{"$match": bson.M{"n": 1}}}, pipeline)
	})

	t.Run("unbound model is not filtered", func(t *testing.T) {
		t.Parallel()

		docs, err := f.model.Aggregate(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, docs, 3)
	})
}

func TestBoundModel_Discriminators(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (odm.Model, odm.Model) {
		t.Helper()
		schema := odm.NewSchema(odm.Field{Name: "name"})
		_, err := tenancy.Apply(schema, tenancy.WithLogger(logger.Discard()))
		require.NoError(t, err)

		db := odm.NewDB(memstore.New(), odm.WithLogger(logger.Discard()))
		base, err := db.Register("Animal", schema)
		require.NoError(t, err)
		dog, err := base.Discriminator("Dog", odm.NewSchema(odm.Field{Name: "breed"}))
		require.NoError(t, err)
		return base, dog
	}

	t.Run("bound discriminators mirror the base model", func(t *testing.T) {
		t.Parallel()

		base, dog := setup(t)
		bound := byTenant(t, base, "t1")

		discs := bound.Discriminators()
		require.Contains(t, discs, "Dog")
		boundDog := discs["Dog"]
		assert.True(t, tenancy.HasTenantContext(boundDog))
		tenant, _ := tenancy.TenantOf(boundDog)
		assert.Equal(t, "t1", tenant)
		assert.Same(t, byTenant(t, dog, "t1"), boundDog)
		assert.Same(t, boundDog, bound.Discriminators()["Dog"])
	})

	t.Run("documents carry discriminator and tenant", func(t *testing.T) {
		t.Parallel()

		base, _ := setup(t)
		boundDog := byTenant(t, base, "t1").Discriminators()["Dog"]

		docs, err := boundDog.InsertMany(ctx, bson.M{"name": "rex", "tenant": "t2"})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Dog", docs[0].Get("__t"))
		assert.Equal(t, "t1", docs[0].Get("tenant"))

		doc := boundDog.New(bson.M{"name": "fido"})
		doc.Set("tenant", "t2")
		require.NoError(t, doc.Save(ctx))

		found, err := base.Find(ctx, bson.M{"__t": "Dog"})
		require.NoError(t, err)
		require.Len(t, found, 2)
		for _, d := range found {
			assert.Equal(t, "t1", d.Get("tenant"))
		}
	})

	t.Run("parent queries hydrate bound discriminator documents", func(t *testing.T) {
		t.Parallel()

		base, _ := setup(t)
		bound := byTenant(t, base, "t1")
		_, err := bound.Discriminators()["Dog"].InsertMany(ctx, bson.M{"name": "rex"})
		require.NoError(t, err)
		_, err = bound.InsertMany(ctx, bson.M{"name": "generic"})
		require.NoError(t, err)
		_, err = byTenant(t, base, "t2").Discriminators()["Dog"].InsertMany(ctx, bson.M{"name": "other"})
		require.NoError(t, err)

		docs, err := bound.Find(ctx, bson.M{}, odm.WithSort(bson.D{{Key: "name", Value: 1}}))
		require.NoError(t, err)
		require.Len(t, docs, 2)

		assert.Equal(t, "Animal", docs[0].Model().Name())
		assert.Equal(t, "Dog", docs[1].Model().Name())
		for _, d := range docs {
			assert.True(t, tenancy.HasTenantContext(d))
		}
	})

	t.Run("discriminator created on a bound model is bound", func(t *testing.T) {
		t.Parallel()

		base, _ := setup(t)
		bound := byTenant(t, base, "t1")
		cat, err := bound.Discriminator("Cat", odm.NewSchema())
		require.NoError(t, err)

		assert.True(t, tenancy.HasTenantContext(cat))
		assert.Contains(t, base.Discriminators(), "Cat")
	})
}

func TestBoundModel_EstimatedDocumentCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	_, err := f.model.InsertMany(ctx, bson.M{"tenant": "t1"}, bson.M{"tenant": "t2"}, bson.M{"tenant": "t2"})
	require.NoError(t, err)

	n, err := byTenant(t, f.model, "t2").EstimatedDocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.model.EstimatedDocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestBoundModel_StoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	bound := byTenant(t, f.model, "t1")
	_, err := bound.InsertMany(ctx, bson.M{"someField": "x"})
	require.NoError(t, err)

	_, err = bound.Find(ctx, bson.M{"someField": bson.M{"$regex": "x"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, memstore.ErrUnsupported))
}
