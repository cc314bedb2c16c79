package odm

import (
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// IndexOptions mirrors the index options understood by the store, plus
// PreserveUniqueKey which plugins may use to leave an index untouched.
type IndexOptions struct {
	Name                    string
	Unique                  bool
	Sparse                  bool
	PartialFilterExpression bson.M
	ExpireAfterSeconds      *int32

	// PreserveUniqueKey opts a unique index out of scope rewriting by plugins.
	// It is never sent to the store.
	PreserveUniqueKey bool
}

// Index is a key set with its options.
type Index struct {
	Keys    bson.D
	Options IndexOptions
}

// Has reports whether key is part of the index key set.
func (i Index) Has(key string) bool {
	for _, e := range i.Keys {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Field declares a document attribute.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Default  any

	// Index declares a single-field index on the path when non-nil.
	Index *IndexOptions

	// Ref names the model that values of this path reference.
	Ref string
}

// Plugin extends a schema. Plugins are applied once per schema.
type Plugin interface {
	Apply(s *Schema) error
}

// PluginFunc adapts a function to the Plugin interface.
type PluginFunc func(s *Schema) error

func (f PluginFunc) Apply(s *Schema) error { return f(s) }

type discriminatorInfo struct {
	key   string
	value string
}

// Schema describes the shape, indexes, hooks and statics of a model.
// A schema is configured once at startup and must not be modified after a
// model has been registered with it.
type Schema struct {
	parent        *Schema
	fields        []Field
	positions     map[string]int
	indexes       []Index
	qhooks        []queryHook
	dhooks        []documentHook
	statics       map[string]any
	discriminator *discriminatorInfo
}

// NewSchema creates a schema with the given fields.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{
		positions: make(map[string]int),
		statics:   make(map[string]any),
	}
	return s.Add(fields...)
}

// Add declares fields. Declaring an existing path replaces it in place.
func (s *Schema) Add(fields ...Field) *Schema {
	for _, f := range fields {
		if f.Type == "" {
			f.Type = Any
		}
		if f.Index != nil {
			opts := *f.Index
			f.Index = &opts
		}
		if pos, ok := s.positions[f.Name]; ok {
			s.fields[pos] = f
			continue
		}
		s.positions[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Path returns the declaration of a path, looking through parent schemas.
func (s *Schema) Path(name string) (Field, bool) {
	if pos, ok := s.positions[name]; ok {
		return s.fields[pos], true
	}
	if s.parent != nil {
		return s.parent.Path(name)
	}
	return Field{}, false
}

// EachPath calls fn for every declared path, parent paths first.
// It iterates over a snapshot, so fn may redeclare paths.
func (s *Schema) EachPath(fn func(f Field)) {
	if s.parent != nil {
		s.parent.EachPath(func(f Field) {
			if _, own := s.positions[f.Name]; !own {
				fn(f)
			}
		})
	}
	snapshot := make([]Field, len(s.fields))
	copy(snapshot, s.fields)
	for _, f := range snapshot {
		fn(f)
	}
}

// Index declares a schema-level index.
func (s *Schema) Index(keys bson.D, opts IndexOptions) *Schema {
	s.indexes = append(s.indexes, Index{Keys: keys, Options: opts})
	return s
}

// RewriteIndexes replaces every schema-level index with fn's result.
func (s *Schema) RewriteIndexes(fn func(Index) Index) {
	for i, idx := range s.indexes {
		s.indexes[i] = fn(idx)
	}
}

// Indexes returns the indexes this schema realizes on its collection:
// single-field path indexes followed by schema-level indexes.
func (s *Schema) Indexes() []Index {
	out := make([]Index, 0, len(s.fields)+len(s.indexes))
	for _, f := range s.fields {
		if f.Index == nil {
			continue
		}
		out = append(out, Index{Keys: bson.D{{Key: f.Name, Value: 1}}, Options: *f.Index})
	}
	return append(out, s.indexes...)
}

// PreQuery registers a hook for query-context operations.
func (s *Schema) PreQuery(hook QueryHook, ops ...Op) *Schema {
	s.qhooks = append(s.qhooks, queryHook{ops: opSet(ops), hook: hook})
	return s
}

// PreDocument registers a hook for document-context operations.
func (s *Schema) PreDocument(hook DocumentHook, ops ...Op) *Schema {
	s.dhooks = append(s.dhooks, documentHook{ops: opSet(ops), hook: hook})
	return s
}

// Use applies a plugin to the schema.
func (s *Schema) Use(p Plugin) error {
	return p.Apply(s)
}

// Static attaches a named value to every model compiled from the schema.
func (s *Schema) Static(name string, v any) *Schema {
	s.statics[name] = v
	return s
}

// Lookup resolves a static, looking through parent schemas.
func (s *Schema) Lookup(name string) (any, bool) {
	if v, ok := s.statics[name]; ok {
		return v, true
	}
	if s.parent != nil {
		return s.parent.Lookup(name)
	}
	return nil, false
}

// Statics returns a copy of the statics declared on this schema.
func (s *Schema) Statics() map[string]any {
	return maps.Clone(s.statics)
}

// Discriminator reports the discriminator key and value of a discriminator
// schema. ok is false for root schemas.
func (s *Schema) Discriminator() (key, value string, ok bool) {
	if s.discriminator == nil {
		return "", "", false
	}
	return s.discriminator.key, s.discriminator.value, true
}

func (s *Schema) queryHooks() []queryHook {
	if s.parent == nil {
		return s.qhooks
	}
	return append(append([]queryHook{}, s.parent.queryHooks()...), s.qhooks...)
}

func (s *Schema) documentHooks() []documentHook {
	if s.parent == nil {
		return s.dhooks
	}
	return append(append([]documentHook{}, s.parent.documentHooks()...), s.dhooks...)
}

// derive creates a discriminator schema inheriting from s.
func (s *Schema) derive(child *Schema, key, value string) *Schema {
	d := NewSchema(child.fields...)
	d.parent = s
	d.indexes = append(d.indexes, child.indexes...)
	d.qhooks = append(d.qhooks, child.qhooks...)
	d.dhooks = append(d.dhooks, child.dhooks...)
	maps.Copy(d.statics, child.statics)
	d.discriminator = &discriminatorInfo{key: key, value: value}
	d.Add(Field{Name: key, Type: String})
	return d
}
