package odm

import "go.mongodb.org/mongo-driver/v2/bson"

// CloneM returns a deep copy of m. Nested maps, arrays and ordered documents
// are copied, scalar values are shared.
func CloneM(m bson.M) bson.M {
	if m == nil {
		return nil
	}
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies container values understood by bson.
func CloneValue(v any) any {
	switch x := v.(type) {
	case bson.M:
		return CloneM(x)
	case map[string]any:
		return map[string]any(CloneM(bson.M(x)))
	case bson.D:
		out := make(bson.D, len(x))
		for i, e := range x {
			out[i] = bson.E{Key: e.Key, Value: CloneValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// AsM returns v as a bson.M when it is a document-shaped value.
func AsM(v any) (bson.M, bool) {
	switch x := v.(type) {
	case bson.M:
		return x, true
	case map[string]any:
		return bson.M(x), true
	case bson.D:
		out := make(bson.M, len(x))
		for _, e := range x {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}
