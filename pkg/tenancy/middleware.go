package tenancy

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

var (
	filterOps = []odm.Op{
		odm.OpCount,
		odm.OpCountDocuments,
		odm.OpDeleteMany,
		odm.OpDeleteOne,
		odm.OpEstimatedDocumentCount,
		odm.OpFind,
		odm.OpFindOne,
		odm.OpFindOneAndDelete,
		odm.OpFindOneAndRemove,
		odm.OpRemove,
		odm.OpSave,
	}
	updateOps = []odm.Op{
		odm.OpFindOneAndUpdate,
		odm.OpUpdate,
		odm.OpUpdateMany,
		odm.OpUpdateOne,
	}
	documentOps = []odm.Op{
		odm.OpSave,
		odm.OpUpdateOne,
	}
)

func (p *Plugin) installMiddleware(s *odm.Schema) {
	if !p.opts.Enabled {
		return
	}
	s.PreQuery(p.scopeFilter, filterOps...)
	s.PreQuery(p.scopeUpdate, updateOps...)
	s.PreDocument(p.stampDocument, documentOps...)
}

// scopeFilter forces the bound tenant into the filter, replacing any value
// the caller supplied for the tenant key.
func (p *Plugin) scopeFilter(ctx context.Context, q *odm.Query) error {
	ts, ok := scoped(q.Model)
	if !ok || !ts.HasTenantContext() {
		return nil
	}
	q.Filter[p.opts.TenantIDKey] = ts.Tenant()
	p.rewritten(ctx, q.Model.Name(), string(q.Op), ts.Tenant())
	return nil
}

// scopeUpdate scopes the filter and keeps the update payload from moving a
// document to another tenant. Replacements get the tenant key set; operator
// updates have it re-asserted under $set and $setOnInsert and removed from
// every other operator. Sub-paths of the key and $rename targets naming it
// are dropped.
func (p *Plugin) scopeUpdate(ctx context.Context, q *odm.Query) error {
	ts, ok := scoped(q.Model)
	if !ok || !ts.HasTenantContext() {
		return nil
	}
	key, tenant := p.opts.TenantIDKey, ts.Tenant()
	q.Filter[key] = tenant

	if q.Update == nil {
		q.Update = bson.M{}
	}
	if q.Overwrite {
		q.Update[key] = tenant
		p.rewritten(ctx, q.Model.Name(), string(q.Op), tenant)
		return nil
	}

	for op, arg := range q.Update {
		if !strings.HasPrefix(op, "$") {
			switch {
			case op == key:
				q.Update[op] = tenant
			case isSubPath(key, op):
				delete(q.Update, op)
			}
			continue
		}
		fields, ok := odm.AsM(arg)
		if !ok {
			continue
		}
		scopedFields, changed := scopeOperator(op, fields, key, tenant)
		if !changed {
			continue
		}
		if len(scopedFields) == 0 {
			delete(q.Update, op)
			continue
		}
		q.Update[op] = scopedFields
	}
	p.rewritten(ctx, q.Model.Name(), string(q.Op), tenant)
	return nil
}

// scopeOperator returns a copy of one operator's arguments with every path
// touching the tenant key rewritten or removed.
func scopeOperator(op string, fields bson.M, key string, tenant any) (bson.M, bool) {
	out := make(bson.M, len(fields))
	changed := false
	for path, v := range fields {
		switch {
		case path == key && (op == "$set" || op == "$setOnInsert"):
			out[path] = tenant
			changed = true
			continue
		case path == key || isSubPath(key, path):
			changed = true
			continue
		}
		if target, ok := v.(string); ok && op == "$rename" && (target == key || isSubPath(key, target)) {
			changed = true
			continue
		}
		out[path] = v
	}
	return out, changed
}

func isSubPath(key, path string) bool {
	return strings.HasPrefix(path, key+".")
}

// stampDocument sets the tenant of the document's bound model before the
// document is written.
func (p *Plugin) stampDocument(ctx context.Context, doc *odm.Document) error {
	ts, ok := scoped(doc)
	if !ok || !ts.HasTenantContext() {
		return nil
	}
	doc.Set(p.opts.TenantIDKey, ts.Tenant())
	p.rewritten(ctx, doc.Model().Name(), "document", ts.Tenant())
	return nil
}
