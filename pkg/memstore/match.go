package memstore

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Match reports whether doc satisfies filter. Supported: implicit equality
// (including membership in array values), $eq, $ne, $in, $nin, $gt, $gte,
// $lt, $lte, $exists, and the logical $and, $or, $nor.
func Match(doc, filter bson.M) (bool, error) {
	for key, cond := range filter {
		ok, err := matchKey(doc, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(doc bson.M, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := asArray(cond)
		if !ok {
			return false, fmt.Errorf("%w: %s requires an array", ErrUnsupported, key)
		}
		return matchLogical(doc, key, clauses)
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("%w: operator %s", ErrUnsupported, key)
	}

	value, exists := lookup(doc, key)
	if ops, ok := asMap(cond); ok && isOperatorDoc(ops) {
		for op, arg := range ops {
			ok, err := matchOperator(value, exists, op, arg)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return matchEqual(value, exists, cond), nil
}

func matchLogical(doc bson.M, op string, clauses []any) (bool, error) {
	for _, c := range clauses {
		sub, ok := asMap(c)
		if !ok {
			return false, fmt.Errorf("%w: %s clause must be a document", ErrUnsupported, op)
		}
		matched, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		switch op {
		case "$and":
			if !matched {
				return false, nil
			}
		case "$or":
			if matched {
				return true, nil
			}
		case "$nor":
			if matched {
				return false, nil
			}
		}
	}
	return op != "$or", nil
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matchEqual(value any, exists bool, cond any) bool {
	if cond == nil {
		return !exists || value == nil
	}
	if !exists {
		return false
	}
	if equal(value, cond) {
		return true
	}
	if arr, ok := asArray(value); ok {
		for _, v := range arr {
			if equal(v, cond) {
				return true
			}
		}
	}
	return false
}

func matchOperator(value any, exists bool, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return matchEqual(value, exists, arg), nil
	case "$ne":
		return !matchEqual(value, exists, arg), nil
	case "$in", "$nin":
		list, ok := asArray(arg)
		if !ok {
			return false, fmt.Errorf("%w: %s requires an array", ErrUnsupported, op)
		}
		found := false
		for _, candidate := range list {
			if matchEqual(value, exists, candidate) {
				found = true
				break
			}
		}
		return found == (op == "$in"), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false, nil
		}
		c, ok := compare(value, arg)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		}
		return c <= 0, nil
	case "$exists":
		want, _ := arg.(bool)
		return exists == want, nil
	}
	return false, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
}
