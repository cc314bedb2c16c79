package odm

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Connection resolves models and collections by name.
type Connection interface {
	Model(name string) (Model, error)
	Collection(name string) Collection
}

// Model is the capability set of a compiled schema bound to a collection.
// Wrappers implement it by delegating to a base model.
type Model interface {
	Name() string
	Schema() *Schema
	DB() Connection
	// Base returns the compiled model a wrapper delegates to. Compiled models
	// return themselves.
	Base() Model
	Static(name string) (any, bool)
	New(fields bson.M) *Document

	Discriminator(name string, schema *Schema, opts ...DiscriminatorOption) (Model, error)
	Discriminators() map[string]Model

	Find(ctx context.Context, filter bson.M, opts ...FindOption) ([]*Document, error)
	FindOne(ctx context.Context, filter bson.M) (*Document, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	EstimatedDocumentCount(ctx context.Context) (int64, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	Remove(ctx context.Context, filter bson.M) (int64, error)
	FindOneAndDelete(ctx context.Context, filter bson.M) (*Document, error)
	FindOneAndRemove(ctx context.Context, filter bson.M) (*Document, error)
	FindOneAndUpdate(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (*Document, error)
	Update(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (UpdateResult, error)
	UpdateOne(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (UpdateResult, error)
	Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error)
	InsertMany(ctx context.Context, docs ...bson.M) ([]*Document, error)
	Save(ctx context.Context, doc *Document) error
	Populate(ctx context.Context, doc *Document, paths ...string) error
}

type model struct {
	name   string
	schema *Schema
	db     *DB
	coll   Collection

	mu             sync.RWMutex
	discriminators map[string]Model
}

func newModel(name string, schema *Schema, db *DB, coll Collection) *model {
	return &model{
		name:           name,
		schema:         schema,
		db:             db,
		coll:           coll,
		discriminators: make(map[string]Model),
	}
}

func (m *model) Name() string    { return m.name }
func (m *model) Schema() *Schema { return m.schema }
func (m *model) DB() Connection  { return m.db }
func (m *model) Base() Model     { return m }

func (m *model) New(fields bson.M) *Document {
	return NewDocument(m, fields)
}

func (m *model) Static(name string) (any, bool) {
	return m.schema.Lookup(name)
}

func (m *model) Discriminator(name string, schema *Schema, opts ...DiscriminatorOption) (Model, error) {
	if schema == nil {
		return nil, ErrNilSchema
	}
	cfg := discriminatorConfig{key: DefaultDiscriminatorKey, value: name}
	for _, opt := range opts {
		opt(&cfg)
	}
	if key, _, ok := m.schema.Discriminator(); ok {
		cfg.key = key
	}

	child := newModel(name, m.schema.derive(schema, cfg.key, cfg.value), m.db, m.coll)
	if err := m.db.add(name, child); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.discriminators[name] = child
	m.mu.Unlock()
	return child, nil
}

func (m *model) Discriminators() map[string]Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.discriminators)
}

// executor returns the wrapper recorded in ctx when it wraps this model.
func (m *model) executor(ctx context.Context) Model {
	if exec, ok := ExecutorFromContext(ctx); ok && exec.Base() == Model(m) {
		return exec
	}
	return m
}

func (m *model) prepare(ctx context.Context, op Op, filter, update bson.M, overwrite bool) (*Query, error) {
	q := &Query{
		Op:        op,
		Model:     m.executor(ctx),
		Filter:    CloneM(filter),
		Update:    CloneM(update),
		Overwrite: overwrite,
	}
	if q.Filter == nil {
		q.Filter = bson.M{}
	}
	if q.Update == nil && update != nil {
		q.Update = bson.M{}
	}
	if err := runQueryHooks(ctx, m.schema, q); err != nil {
		return nil, err
	}
	if key, value, ok := m.schema.Discriminator(); ok {
		q.Filter[key] = value
	}
	return q, nil
}

func (m *model) Find(ctx context.Context, filter bson.M, opts ...FindOption) ([]*Document, error) {
	q, err := m.prepare(ctx, OpFind, filter, nil, false)
	if err != nil {
		return nil, err
	}
	var fo FindOptions
	for _, opt := range opts {
		opt(&fo)
	}
	raws, err := m.coll.Find(ctx, q.Filter, fo)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, len(raws))
	for i, raw := range raws {
		docs[i] = hydrate(q.Model, raw)
	}
	return docs, nil
}

func (m *model) FindOne(ctx context.Context, filter bson.M) (*Document, error) {
	q, err := m.prepare(ctx, OpFindOne, filter, nil, false)
	if err != nil {
		return nil, err
	}
	raw, err := m.coll.FindOne(ctx, q.Filter)
	if err != nil || raw == nil {
		return nil, err
	}
	return hydrate(q.Model, raw), nil
}

func (m *model) count(ctx context.Context, op Op, filter bson.M) (int64, error) {
	q, err := m.prepare(ctx, op, filter, nil, false)
	if err != nil {
		return 0, err
	}
	return m.coll.CountDocuments(ctx, q.Filter)
}

func (m *model) Count(ctx context.Context, filter bson.M) (int64, error) {
	return m.count(ctx, OpCount, filter)
}

func (m *model) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	return m.count(ctx, OpCountDocuments, filter)
}

// EstimatedDocumentCount uses collection metadata unless a hook or the
// discriminator narrowed the filter, in which case documents are counted.
func (m *model) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	q, err := m.prepare(ctx, OpEstimatedDocumentCount, nil, nil, false)
	if err != nil {
		return 0, err
	}
	if len(q.Filter) > 0 {
		return m.coll.CountDocuments(ctx, q.Filter)
	}
	return m.coll.EstimatedDocumentCount(ctx)
}

func (m *model) delete(ctx context.Context, op Op, filter bson.M, many bool) (int64, error) {
	q, err := m.prepare(ctx, op, filter, nil, false)
	if err != nil {
		return 0, err
	}
	if many {
		return m.coll.DeleteMany(ctx, q.Filter)
	}
	return m.coll.DeleteOne(ctx, q.Filter)
}

func (m *model) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	return m.delete(ctx, OpDeleteOne, filter, false)
}

func (m *model) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	return m.delete(ctx, OpDeleteMany, filter, true)
}

func (m *model) Remove(ctx context.Context, filter bson.M) (int64, error) {
	return m.delete(ctx, OpRemove, filter, true)
}

func (m *model) findOneAndDelete(ctx context.Context, op Op, filter bson.M) (*Document, error) {
	q, err := m.prepare(ctx, op, filter, nil, false)
	if err != nil {
		return nil, err
	}
	raw, err := m.coll.FindOneAndDelete(ctx, q.Filter)
	if err != nil || raw == nil {
		return nil, err
	}
	return hydrate(q.Model, raw), nil
}

func (m *model) FindOneAndDelete(ctx context.Context, filter bson.M) (*Document, error) {
	return m.findOneAndDelete(ctx, OpFindOneAndDelete, filter)
}

func (m *model) FindOneAndRemove(ctx context.Context, filter bson.M) (*Document, error) {
	return m.findOneAndDelete(ctx, OpFindOneAndRemove, filter)
}

func (m *model) FindOneAndUpdate(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (*Document, error) {
	cfg := newUpdateConfig(opts)
	q, err := m.prepare(ctx, OpFindOneAndUpdate, filter, update, cfg.overwrite)
	if err != nil {
		return nil, err
	}
	payload, replace, err := m.normalizeUpdate(q)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	switch {
	case replace:
		raw, err = m.coll.FindOneAndReplace(ctx, q.Filter, payload)
	case len(payload) == 0:
		raw, err = m.coll.FindOne(ctx, q.Filter)
	default:
		raw, err = m.coll.FindOneAndUpdate(ctx, q.Filter, payload)
	}
	if err != nil || raw == nil {
		return nil, err
	}
	return hydrate(q.Model, raw), nil
}

func (m *model) update(ctx context.Context, op Op, filter, update bson.M, opts []UpdateOption, many bool) (UpdateResult, error) {
	cfg := newUpdateConfig(opts)
	q, err := m.prepare(ctx, op, filter, update, cfg.overwrite)
	if err != nil {
		return UpdateResult{}, err
	}
	payload, replace, err := m.normalizeUpdate(q)
	if err != nil {
		return UpdateResult{}, err
	}

	switch {
	case replace && many:
		return UpdateResult{}, fmt.Errorf("%w: replacement cannot target many documents", ErrInvalidUpdate)
	case replace:
		return m.coll.ReplaceOne(ctx, q.Filter, payload)
	case len(payload) == 0:
		return UpdateResult{}, nil
	case many:
		return m.coll.UpdateMany(ctx, q.Filter, payload)
	default:
		return m.coll.UpdateOne(ctx, q.Filter, payload)
	}
}

func (m *model) Update(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (UpdateResult, error) {
	return m.update(ctx, OpUpdate, filter, update, opts, false)
}

func (m *model) UpdateOne(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (UpdateResult, error) {
	return m.update(ctx, OpUpdateOne, filter, update, opts, false)
}

func (m *model) UpdateMany(ctx context.Context, filter, update bson.M, opts ...UpdateOption) (UpdateResult, error) {
	return m.update(ctx, OpUpdateMany, filter, update, opts, true)
}

// normalizeUpdate folds plain paths into $set. With overwrite the payload is
// a replacement document and must not contain operators.
func (m *model) normalizeUpdate(q *Query) (bson.M, bool, error) {
	if q.Overwrite {
		out := make(bson.M, len(q.Update)+1)
		for k, v := range q.Update {
			if strings.HasPrefix(k, "$") {
				return nil, false, fmt.Errorf("%w: operator %s in replacement document", ErrInvalidUpdate, k)
			}
			out[k] = v
		}
		if key, value, ok := m.schema.Discriminator(); ok {
			out[key] = value
		}
		return out, true, nil
	}

	out := make(bson.M, len(q.Update))
	set := bson.M{}
	for k, v := range q.Update {
		if strings.HasPrefix(k, "$") {
			out[k] = v
			continue
		}
		set[k] = v
	}
	if len(set) > 0 {
		merged := bson.M{}
		if existing, ok := AsM(out["$set"]); ok {
			maps.Copy(merged, existing)
		}
		maps.Copy(merged, set)
		out["$set"] = merged
	}
	return out, false, nil
}

func (m *model) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	if key, value, ok := m.schema.Discriminator(); ok {
		pipeline = MatchFirst(pipeline, bson.M{key: value})
	}
	return m.coll.Aggregate(ctx, pipeline)
}

func (m *model) InsertMany(ctx context.Context, docs ...bson.M) ([]*Document, error) {
	exec := m.executor(ctx)
	out := make([]*Document, 0, len(docs))
	raws := make([]bson.M, 0, len(docs))
	for _, fields := range docs {
		doc := NewDocument(exec, fields)
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		out = append(out, doc)
		raws = append(raws, doc.fields)
	}
	if len(raws) == 0 {
		return out, nil
	}
	if err := m.coll.InsertMany(ctx, raws); err != nil {
		return nil, err
	}
	for _, doc := range out {
		doc.isNew = false
	}
	return out, nil
}

func (m *model) Save(ctx context.Context, doc *Document) error {
	if err := runDocumentHooks(ctx, m.schema, OpSave, doc); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.isNew {
		if err := m.coll.InsertMany(ctx, []bson.M{doc.fields}); err != nil {
			return err
		}
		doc.isNew = false
		return nil
	}

	// The replace filter goes through save query hooks so plugins can narrow it.
	q, err := m.prepare(ctx, OpSave, bson.M{"_id": doc.ID()}, nil, false)
	if err != nil {
		return err
	}
	res, err := m.coll.ReplaceOne(ctx, q.Filter, doc.fields)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s %v", ErrDocumentNotFound, m.name, doc.ID())
	}
	return nil
}

// Populate resolves reference paths through the connection of the document's
// model, so wrappers that override Model resolution decide which model
// loads the referenced documents.
func (m *model) Populate(ctx context.Context, doc *Document, paths ...string) error {
	conn := doc.Model().DB()
	for _, path := range paths {
		field, ok := m.schema.Path(path)
		if !ok || field.Ref == "" {
			return fmt.Errorf("%w: %s", ErrNotReference, path)
		}
		ref, err := conn.Model(field.Ref)
		if err != nil {
			return err
		}

		value, ok := doc.fields[path]
		if !ok || value == nil {
			continue
		}
		if ids, many := asSlice(value); many {
			found, err := ref.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
			if err != nil {
				return err
			}
			doc.setPopulated(path, orderByID(found, ids))
			continue
		}
		found, err := ref.FindOne(ctx, bson.M{"_id": value})
		if err != nil {
			return err
		}
		if found == nil {
			doc.setPopulated(path, nil)
			continue
		}
		doc.setPopulated(path, found)
	}
	return nil
}

// hydrate wraps a stored document with the most specific discriminator of exec.
func hydrate(exec Model, raw bson.M) *Document {
	return &Document{model: resolveDiscriminator(exec, raw), fields: raw}
}

func resolveDiscriminator(m Model, raw bson.M) Model {
	for _, d := range m.Discriminators() {
		key, value, ok := d.Schema().Discriminator()
		if !ok {
			continue
		}
		if v, ok := raw[key]; ok && v == any(value) {
			return resolveDiscriminator(d, raw)
		}
	}
	return m
}

func asSlice(v any) (bson.A, bool) {
	switch x := v.(type) {
	case bson.A:
		return x, true
	case []any:
		return bson.A(x), true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make(bson.A, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func orderByID(docs []*Document, ids bson.A) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, id := range ids {
		for _, d := range docs {
			if reflect.DeepEqual(d.ID(), id) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
