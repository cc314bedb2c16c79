package odm

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Op names an operation that can carry pre-hooks.
type Op string

// Query-context operations.
const (
	OpCount                  Op = "count"
	OpCountDocuments         Op = "countDocuments"
	OpDeleteMany             Op = "deleteMany"
	OpDeleteOne              Op = "deleteOne"
	OpEstimatedDocumentCount Op = "estimatedDocumentCount"
	OpFind                   Op = "find"
	OpFindOne                Op = "findOne"
	OpFindOneAndDelete       Op = "findOneAndDelete"
	OpFindOneAndRemove       Op = "findOneAndRemove"
	OpFindOneAndUpdate       Op = "findOneAndUpdate"
	OpRemove                 Op = "remove"
	OpUpdate                 Op = "update"
	OpUpdateMany             Op = "updateMany"
	OpUpdateOne              Op = "updateOne"
)

// Document-context operations. OpUpdateOne is shared: a document hook
// registered for it runs on Document.UpdateOne. A query hook registered for
// OpSave sees the replace filter of a save of an already stored document.
const (
	OpSave Op = "save"
)

// Query is the request handed to query hooks. Hooks may mutate Filter and
// Update in place; the model operates on copies of the caller's values.
type Query struct {
	Op        Op
	Model     Model
	Filter    bson.M
	Update    bson.M
	Overwrite bool
}

// QueryHook runs before a query-context operation reaches the store.
type QueryHook func(ctx context.Context, q *Query) error

// DocumentHook runs before a document-context operation reaches the store.
type DocumentHook func(ctx context.Context, doc *Document) error

type queryHook struct {
	ops  map[Op]struct{}
	hook QueryHook
}

type documentHook struct {
	ops  map[Op]struct{}
	hook DocumentHook
}

func opSet(ops []Op) map[Op]struct{} {
	set := make(map[Op]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

func runQueryHooks(ctx context.Context, s *Schema, q *Query) error {
	for _, h := range s.queryHooks() {
		if _, ok := h.ops[q.Op]; !ok {
			continue
		}
		if err := h.hook(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func runDocumentHooks(ctx context.Context, s *Schema, op Op, doc *Document) error {
	for _, h := range s.documentHooks() {
		if _, ok := h.ops[op]; !ok {
			continue
		}
		if err := h.hook(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
