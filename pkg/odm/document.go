package odm

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Document is a single record constructed by a model. The constructing model
// is kept for the document's lifetime and decides how it is persisted.
type Document struct {
	model     Model
	fields    bson.M
	isNew     bool
	populated map[string]any
}

// NewDocument constructs an unsaved document for m. Defaults declared on the
// schema are applied to missing paths, discriminator models stamp their
// discriminator value, and an ObjectID is assigned when _id is missing.
func NewDocument(m Model, fields bson.M) *Document {
	doc := &Document{model: m, fields: CloneM(fields), isNew: true}
	if doc.fields == nil {
		doc.fields = bson.M{}
	}
	schema := m.Schema()
	schema.EachPath(func(f Field) {
		if f.Default == nil {
			return
		}
		if _, ok := doc.fields[f.Name]; !ok {
			doc.fields[f.Name] = CloneValue(f.Default)
		}
	})
	if key, value, ok := schema.Discriminator(); ok {
		doc.fields[key] = value
	}
	if _, ok := doc.fields["_id"]; !ok {
		doc.fields["_id"] = bson.NewObjectID()
	}
	return doc
}

// Model returns the model that constructed the document.
func (d *Document) Model() Model { return d.model }

// ID returns the _id value.
func (d *Document) ID() any { return d.fields["_id"] }

// IsNew reports whether the document has not been persisted yet.
func (d *Document) IsNew() bool { return d.isNew }

// Get returns the value at path. Populated paths return the loaded
// *Document or []*Document instead of the stored reference.
func (d *Document) Get(path string) any {
	if v, ok := d.populated[path]; ok {
		return v
	}
	return d.fields[path]
}

// Set assigns a value and drops any populated value for the path.
func (d *Document) Set(path string, value any) {
	d.fields[path] = value
	delete(d.populated, path)
}

// Fields returns a copy of the stored fields.
func (d *Document) Fields() bson.M {
	return CloneM(d.fields)
}

// Populated returns the loaded value of a populated path.
func (d *Document) Populated(path string) (any, bool) {
	v, ok := d.populated[path]
	return v, ok
}

// Decode unmarshals the stored fields into v using bson struct tags.
func (d *Document) Decode(v any) error {
	raw, err := bson.Marshal(d.fields)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

// Validate checks required paths.
func (d *Document) Validate() error {
	errs := map[string]string{}
	d.model.Schema().EachPath(func(f Field) {
		if !f.Required {
			return
		}
		v, ok := d.fields[f.Name]
		if !ok || v == nil || v == "" {
			errs[f.Name] = "path is required"
		}
	})
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Model: d.model.Name(), Errors: errs}
}

// Save inserts a new document or replaces the stored one.
func (d *Document) Save(ctx context.Context) error {
	return d.model.Save(ctx, d)
}

// UpdateOne runs the document's updateOne hooks and updates the stored
// document by _id through the document's model.
func (d *Document) UpdateOne(ctx context.Context, update bson.M, opts ...UpdateOption) (UpdateResult, error) {
	if err := runDocumentHooks(ctx, d.model.Schema(), OpUpdateOne, d); err != nil {
		return UpdateResult{}, err
	}
	return d.model.UpdateOne(ctx, bson.M{"_id": d.ID()}, update, opts...)
}

// Populate loads referenced documents for the given paths.
func (d *Document) Populate(ctx context.Context, paths ...string) error {
	return d.model.Populate(ctx, d, paths...)
}

func (d *Document) setPopulated(path string, v any) {
	if d.populated == nil {
		d.populated = make(map[string]any)
	}
	d.populated[path] = v
}
