package memstore

import (
	"context"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// Store is an in-process odm.Driver. Collections are created on first use and
// live as long as the store. It is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection returns the named collection, creating it when missing.
func (s *Store) Collection(name string) odm.Collection {
	return s.collection(name)
}

// Raw returns the named collection as its concrete type.
func (s *Store) Raw(name string) *Collection {
	return s.collection(name)
}

func (s *Store) collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{name: name}
		s.collections[name] = c
	}
	return c
}

// Collection holds documents in insertion order. Stored documents are never
// shared with callers: inputs and results are deep copies.
type Collection struct {
	name    string
	mu      sync.RWMutex
	docs    []bson.M
	indexes []odm.Index
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// matching returns the positions of documents matching filter.
func (c *Collection) matching(filter bson.M, limit int) ([]int, error) {
	var out []int
	for i, doc := range c.docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, i)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Collection) Find(_ context.Context, filter bson.M, opts odm.FindOptions) ([]bson.M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, err := c.matching(filter, 0)
	if err != nil {
		return nil, err
	}
	docs := make([]bson.M, len(idx))
	for i, pos := range idx {
		docs[i] = odm.CloneM(c.docs[pos])
	}
	sortDocs(docs, opts.Sort)
	if opts.Skip > 0 {
		if int(opts.Skip) >= len(docs) {
			return []bson.M{}, nil
		}
		docs = docs[opts.Skip:]
	}
	if opts.Limit > 0 && int(opts.Limit) < len(docs) {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

func (c *Collection) FindOne(_ context.Context, filter bson.M) (bson.M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, err := c.matching(filter, 1)
	if err != nil || len(idx) == 0 {
		return nil, err
	}
	return odm.CloneM(c.docs[idx[0]]), nil
}

func (c *Collection) CountDocuments(_ context.Context, filter bson.M) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, err := c.matching(filter, 0)
	return int64(len(idx)), err
}

func (c *Collection) EstimatedDocumentCount(context.Context) (int64, error) {
	return int64(c.Len()), nil
}

// InsertMany inserts all documents or none.
func (c *Collection) InsertMany(_ context.Context, docs []bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := append([]bson.M{}, c.docs...)
	for _, doc := range docs {
		doc = odm.CloneM(doc)
		if _, ok := doc["_id"]; !ok {
			doc["_id"] = bson.NewObjectID()
		}
		if err := c.checkUnique(next, doc, -1); err != nil {
			return err
		}
		next = append(next, doc)
	}
	c.docs = next
	return nil
}

func (c *Collection) updateAt(pos int, update bson.M) (bool, error) {
	updated, err := applyUpdate(c.docs[pos], update)
	if err != nil {
		return false, err
	}
	if err := c.checkUnique(c.docs, updated, pos); err != nil {
		return false, err
	}
	modified := !reflect.DeepEqual(updated, c.docs[pos])
	c.docs[pos] = updated
	return modified, nil
}

func (c *Collection) replaceAt(pos int, replacement bson.M) (bool, error) {
	doc := odm.CloneM(replacement)
	if doc == nil {
		doc = bson.M{}
	}
	id, ok := doc["_id"]
	if !ok {
		doc["_id"] = c.docs[pos]["_id"]
	} else if !equal(id, c.docs[pos]["_id"]) {
		return false, ErrImmutableID
	}
	if err := c.checkUnique(c.docs, doc, pos); err != nil {
		return false, err
	}
	modified := !reflect.DeepEqual(doc, c.docs[pos])
	c.docs[pos] = doc
	return modified, nil
}

func (c *Collection) update(filter, update bson.M, limit int) (odm.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.matching(filter, limit)
	if err != nil {
		return odm.UpdateResult{}, err
	}
	res := odm.UpdateResult{MatchedCount: int64(len(idx))}
	for _, pos := range idx {
		modified, err := c.updateAt(pos, update)
		if err != nil {
			return res, err
		}
		if modified {
			res.ModifiedCount++
		}
	}
	return res, nil
}

func (c *Collection) UpdateOne(_ context.Context, filter, update bson.M) (odm.UpdateResult, error) {
	return c.update(filter, update, 1)
}

func (c *Collection) UpdateMany(_ context.Context, filter, update bson.M) (odm.UpdateResult, error) {
	return c.update(filter, update, 0)
}

func (c *Collection) ReplaceOne(_ context.Context, filter, replacement bson.M) (odm.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.matching(filter, 1)
	if err != nil || len(idx) == 0 {
		return odm.UpdateResult{}, err
	}
	modified, err := c.replaceAt(idx[0], replacement)
	if err != nil {
		return odm.UpdateResult{}, err
	}
	res := odm.UpdateResult{MatchedCount: 1}
	if modified {
		res.ModifiedCount = 1
	}
	return res, nil
}

func (c *Collection) delete(filter bson.M, limit int) ([]bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.matching(filter, limit)
	if err != nil || len(idx) == 0 {
		return nil, err
	}
	removed := make([]bson.M, 0, len(idx))
	keep := make([]bson.M, 0, len(c.docs)-len(idx))
	next := 0
	for i, doc := range c.docs {
		if next < len(idx) && idx[next] == i {
			removed = append(removed, doc)
			next++
			continue
		}
		keep = append(keep, doc)
	}
	c.docs = keep
	return removed, nil
}

func (c *Collection) DeleteOne(_ context.Context, filter bson.M) (int64, error) {
	removed, err := c.delete(filter, 1)
	return int64(len(removed)), err
}

func (c *Collection) DeleteMany(_ context.Context, filter bson.M) (int64, error) {
	removed, err := c.delete(filter, 0)
	return int64(len(removed)), err
}

func (c *Collection) FindOneAndDelete(_ context.Context, filter bson.M) (bson.M, error) {
	removed, err := c.delete(filter, 1)
	if err != nil || len(removed) == 0 {
		return nil, err
	}
	return removed[0], nil
}

// FindOneAndUpdate returns the document after the update.
func (c *Collection) FindOneAndUpdate(_ context.Context, filter, update bson.M) (bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.matching(filter, 1)
	if err != nil || len(idx) == 0 {
		return nil, err
	}
	if _, err := c.updateAt(idx[0], update); err != nil {
		return nil, err
	}
	return odm.CloneM(c.docs[idx[0]]), nil
}

// FindOneAndReplace returns the document after the replacement.
func (c *Collection) FindOneAndReplace(_ context.Context, filter, replacement bson.M) (bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.matching(filter, 1)
	if err != nil || len(idx) == 0 {
		return nil, err
	}
	if _, err := c.replaceAt(idx[0], replacement); err != nil {
		return nil, err
	}
	return odm.CloneM(c.docs[idx[0]]), nil
}

func (c *Collection) Aggregate(_ context.Context, pipeline []bson.M) ([]bson.M, error) {
	c.mu.RLock()
	docs := make([]bson.M, len(c.docs))
	for i, doc := range c.docs {
		docs[i] = odm.CloneM(doc)
	}
	c.mu.RUnlock()

	return runPipeline(docs, pipeline)
}
