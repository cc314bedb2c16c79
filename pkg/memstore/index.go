package memstore

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

var idIndex = odm.Index{
	Keys:    bson.D{{Key: "_id", Value: 1}},
	Options: odm.IndexOptions{Name: "_id_", Unique: true},
}

func indexName(idx odm.Index) string {
	if idx.Options.Name != "" {
		return idx.Options.Name
	}
	name := ""
	for i, e := range idx.Keys {
		if i > 0 {
			name += "_"
		}
		name += fmt.Sprintf("%s_%v", e.Key, e.Value)
	}
	return name
}

// indexKey extracts the key tuple of doc for idx. ok is false when the
// document does not participate in the index.
func indexKey(doc bson.M, idx odm.Index) ([]any, bool, error) {
	key := make([]any, len(idx.Keys))
	present := 0
	for i, e := range idx.Keys {
		if v, ok := lookup(doc, e.Key); ok {
			key[i] = v
			present++
		}
	}
	if idx.Options.Sparse && present == 0 {
		return nil, false, nil
	}
	if idx.Options.PartialFilterExpression != nil {
		ok, err := Match(doc, idx.Options.PartialFilterExpression)
		if err != nil || !ok {
			return nil, false, err
		}
	}
	return key, true, nil
}

func sameKey(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameKeySet(a, b bson.D) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || !equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

// checkUnique verifies candidate against every unique index over docs,
// ignoring the entry at position skip.
func (c *Collection) checkUnique(docs []bson.M, candidate bson.M, skip int) error {
	indexes := append([]odm.Index{idIndex}, c.indexes...)
	for _, idx := range indexes {
		if !idx.Options.Unique {
			continue
		}
		key, ok, err := indexKey(candidate, idx)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for i, doc := range docs {
			if i == skip {
				continue
			}
			other, ok, err := indexKey(doc, idx)
			if err != nil {
				return err
			}
			if ok && sameKey(key, other) {
				return fmt.Errorf("%w: collection %s index %s", ErrDuplicateKey, c.name, indexName(idx))
			}
		}
	}
	return nil
}

// CreateIndexes records indexes. An index with the same key set replaces the
// existing one. Existing documents are checked against new unique indexes.
func (c *Collection) CreateIndexes(_ context.Context, indexes []odm.Index) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.Clone(c.indexes)
	for _, idx := range indexes {
		replaced := false
		for i, existing := range next {
			if sameKeySet(existing.Keys, idx.Keys) {
				next[i] = idx
				replaced = true
				break
			}
		}
		if !replaced {
			next = append(next, idx)
		}
	}

	prev := c.indexes
	c.indexes = next
	for i, doc := range c.docs {
		if err := c.checkUnique(c.docs, doc, i); err != nil {
			c.indexes = prev
			return err
		}
	}
	return nil
}

// Indexes returns the indexes recorded on the collection, excluding _id.
func (c *Collection) Indexes() []odm.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.indexes)
}
