package tenancy

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// extendSchema declares the indexed tenant field. Redeclaring replaces the
// existing path.
func (p *Plugin) extendSchema(s *odm.Schema) {
	if !p.opts.Enabled {
		return
	}
	s.Add(odm.Field{
		Name:     p.opts.TenantIDKey,
		Type:     p.opts.TenantIDType,
		Required: p.opts.RequireTenantID,
		Index:    &odm.IndexOptions{},
	})
}

// compoundIndexes scopes unique indexes to the tenant. Schema-level unique
// indexes get the tenant key prepended; field-level unique indexes are moved
// to a {tenant: 1, field: 1} schema index with the same options and the field
// keeps a plain single-field index. Indexes marked PreserveUniqueKey stay
// globally unique.
func (p *Plugin) compoundIndexes(s *odm.Schema) {
	if !p.opts.Enabled {
		return
	}
	key := p.opts.TenantIDKey

	s.RewriteIndexes(func(idx odm.Index) odm.Index {
		if !scopable(idx.Options) {
			return idx
		}
		return odm.Index{Keys: scopeKeys(key, idx.Keys), Options: idx.Options}
	})

	s.EachPath(func(f odm.Field) {
		if f.Name == key || f.Index == nil || !scopable(*f.Index) {
			return
		}
		opts := *f.Index
		f.Index = &odm.IndexOptions{}
		s.Add(f)
		s.Index(bson.D{{Key: key, Value: 1}, {Key: f.Name, Value: 1}}, opts)
	})
}

func scopable(opts odm.IndexOptions) bool {
	return opts.Unique && !opts.PreserveUniqueKey
}

func scopeKeys(key string, keys bson.D) bson.D {
	out := make(bson.D, 0, len(keys)+1)
	out = append(out, bson.E{Key: key, Value: 1})
	for _, e := range keys {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}
