package memstore

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// applyUpdate applies an operator update to a copy of doc.
// Supported operators: $set, $unset, $inc, $setOnInsert (ignored, no upserts).
func applyUpdate(doc, update bson.M) (bson.M, error) {
	out := odm.CloneM(doc)
	for op, arg := range update {
		fields, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires a document", ErrUnsupported, op)
		}
		switch op {
		case "$set":
			for path, v := range fields {
				setPath(out, path, odm.CloneValue(v))
			}
		case "$unset":
			for path := range fields {
				unsetPath(out, path)
			}
		case "$inc":
			for path, v := range fields {
				cur, _ := lookup(out, path)
				sum, err := increment(cur, v)
				if err != nil {
					return nil, err
				}
				setPath(out, path, sum)
			}
		case "$setOnInsert":
		default:
			return nil, fmt.Errorf("%w: update operator %s", ErrUnsupported, op)
		}
	}
	if !equal(out["_id"], doc["_id"]) {
		return nil, ErrImmutableID
	}
	return out, nil
}

func setPath(doc bson.M, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = bson.M{}
		}
		cur[part] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func increment(cur, by any) (any, error) {
	if cur == nil {
		return by, nil
	}
	switch c := cur.(type) {
	case int:
		if b, ok := by.(int); ok {
			return c + b, nil
		}
	case int32:
		if b, ok := by.(int32); ok {
			return c + b, nil
		}
	case int64:
		if b, ok := by.(int64); ok {
			return c + b, nil
		}
	}
	fc, ok1 := toFloat(cur)
	fb, ok2 := toFloat(by)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: $inc on non-numeric value", ErrUnsupported)
	}
	return fc + fb, nil
}
