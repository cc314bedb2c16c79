package tenancy

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/logger"
	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// boundModel is a model permanently associated with one tenant. Operations
// are forwarded to the base model with the bound model recorded as executor,
// so hooks, hydration and population observe the tenant.
type boundModel struct {
	odm.Model

	plugin   *Plugin
	tenantID any
	db       odm.Connection
}

// createTenantAwareModel binds base to tenantID. Discriminators are bound on
// access through the same cache, so each one is built once per tenant.
func (p *Plugin) createTenantAwareModel(base odm.Model, tenantID any) odm.Model {
	b := &boundModel{
		Model:    base,
		plugin:   p,
		tenantID: tenantID,
		db:       p.createTenantAwareDB(base.DB(), tenantID),
	}
	p.logger.Debug("tenant model created",
		logger.Component("tenancy"),
		logger.Model(base.Name()),
		logger.Tenant(tenantID),
	)
	return b
}

func (b *boundModel) HasTenantContext() bool { return true }

// Tenant returns the tenant id exactly as it was passed to the accessor.
func (b *boundModel) Tenant() any { return b.tenantID }

func (b *boundModel) DB() odm.Connection { return b.db }

func (b *boundModel) New(fields bson.M) *odm.Document {
	return odm.NewDocument(b, fields)
}

func (b *boundModel) exec(ctx context.Context) context.Context {
	return odm.WithExecutor(ctx, b)
}

func (b *boundModel) bindDiscriminator(d odm.Model) odm.Model {
	p, ok := PluginOf(d)
	if !ok {
		p = b.plugin
	}
	return p.bind(d, b.tenantID)
}

func (b *boundModel) Discriminator(name string, schema *odm.Schema, opts ...odm.DiscriminatorOption) (odm.Model, error) {
	d, err := b.Model.Discriminator(name, schema, opts...)
	if err != nil {
		return nil, err
	}
	return b.bindDiscriminator(d), nil
}

func (b *boundModel) Discriminators() map[string]odm.Model {
	base := b.Model.Discriminators()
	out := make(map[string]odm.Model, len(base))
	for name, d := range base {
		out[name] = b.bindDiscriminator(d)
	}
	return out
}

func (b *boundModel) Find(ctx context.Context, filter bson.M, opts ...odm.FindOption) ([]*odm.Document, error) {
	return b.Model.Find(b.exec(ctx), filter, opts...)
}

func (b *boundModel) FindOne(ctx context.Context, filter bson.M) (*odm.Document, error) {
	return b.Model.FindOne(b.exec(ctx), filter)
}

func (b *boundModel) Count(ctx context.Context, filter bson.M) (int64, error) {
	return b.Model.Count(b.exec(ctx), filter)
}

func (b *boundModel) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	return b.Model.CountDocuments(b.exec(ctx), filter)
}

func (b *boundModel) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	return b.Model.EstimatedDocumentCount(b.exec(ctx))
}

func (b *boundModel) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	return b.Model.DeleteOne(b.exec(ctx), filter)
}

func (b *boundModel) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	return b.Model.DeleteMany(b.exec(ctx), filter)
}

func (b *boundModel) Remove(ctx context.Context, filter bson.M) (int64, error) {
	return b.Model.Remove(b.exec(ctx), filter)
}

func (b *boundModel) FindOneAndDelete(ctx context.Context, filter bson.M) (*odm.Document, error) {
	return b.Model.FindOneAndDelete(b.exec(ctx), filter)
}

func (b *boundModel) FindOneAndRemove(ctx context.Context, filter bson.M) (*odm.Document, error) {
	return b.Model.FindOneAndRemove(b.exec(ctx), filter)
}

func (b *boundModel) FindOneAndUpdate(ctx context.Context, filter, update bson.M, opts ...odm.UpdateOption) (*odm.Document, error) {
	return b.Model.FindOneAndUpdate(b.exec(ctx), filter, update, opts...)
}

func (b *boundModel) Update(ctx context.Context, filter, update bson.M, opts ...odm.UpdateOption) (odm.UpdateResult, error) {
	return b.Model.Update(b.exec(ctx), filter, update, opts...)
}

func (b *boundModel) UpdateOne(ctx context.Context, filter, update bson.M, opts ...odm.UpdateOption) (odm.UpdateResult, error) {
	return b.Model.UpdateOne(b.exec(ctx), filter, update, opts...)
}

func (b *boundModel) UpdateMany(ctx context.Context, filter, update bson.M, opts ...odm.UpdateOption) (odm.UpdateResult, error) {
	return b.Model.UpdateMany(b.exec(ctx), filter, update, opts...)
}

func (b *boundModel) Save(ctx context.Context, doc *odm.Document) error {
	return b.Model.Save(b.exec(ctx), doc)
}

func (b *boundModel) Populate(ctx context.Context, doc *odm.Document, paths ...string) error {
	return b.Model.Populate(b.exec(ctx), doc, paths...)
}

// Aggregate filters by the bound tenant at the first pipeline stage.
func (b *boundModel) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	key := b.plugin.opts.TenantIDKey
	pipeline = odm.MatchFirst(pipeline, bson.M{key: b.tenantID})
	b.plugin.rewritten(ctx, b.Name(), "aggregate", b.tenantID)
	return b.Model.Aggregate(b.exec(ctx), pipeline)
}

// InsertMany stamps the bound tenant on every document, replacing any value
// the caller set. Returned documents belong to the bound model.
func (b *boundModel) InsertMany(ctx context.Context, docs ...bson.M) ([]*odm.Document, error) {
	key := b.plugin.opts.TenantIDKey
	stamped := make([]bson.M, len(docs))
	for i, doc := range docs {
		c := odm.CloneM(doc)
		if c == nil {
			c = bson.M{}
		}
		c[key] = b.tenantID
		stamped[i] = c
	}
	b.plugin.rewritten(ctx, b.Name(), "insertMany", b.tenantID)
	return b.Model.InsertMany(b.exec(ctx), stamped...)
}

func (p *Plugin) rewritten(ctx context.Context, model, op string, tenantID any) {
	p.metrics.rewrite(model, op)
	p.logger.DebugContext(ctx, "tenant scope applied",
		logger.Component("tenancy"),
		logger.Model(model),
		logger.Operation(op),
		logger.Tenant(tenantID),
		slog.String("key", p.opts.TenantIDKey),
	)
}
