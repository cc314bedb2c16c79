package memstore

import (
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// runPipeline evaluates the supported stages: $match, $sort, $skip, $limit
// and $count.
func runPipeline(docs []bson.M, pipeline []bson.M) ([]bson.M, error) {
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("%w: stage must have exactly one key", ErrUnsupported)
		}
		for name, arg := range stage {
			var err error
			docs, err = runStage(docs, name, arg)
			if err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

func runStage(docs []bson.M, name string, arg any) ([]bson.M, error) {
	switch name {
	case "$match":
		filter, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("%w: $match requires a document", ErrUnsupported)
		}
		return filterDocs(docs, filter)
	case "$sort":
		order, ok := arg.(bson.D)
		if !ok {
			m, isMap := asMap(arg)
			if !isMap || len(m) > 1 {
				return nil, fmt.Errorf("%w: multi-key $sort requires bson.D", ErrUnsupported)
			}
			for k, v := range m {
				order = bson.D{{Key: k, Value: v}}
			}
		}
		sortDocs(docs, order)
		return docs, nil
	case "$skip":
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("%w: $skip requires a number", ErrUnsupported)
		}
		if int(n) >= len(docs) {
			return []bson.M{}, nil
		}
		return docs[int(n):], nil
	case "$limit":
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("%w: $limit requires a number", ErrUnsupported)
		}
		if int(n) < len(docs) {
			return docs[:int(n)], nil
		}
		return docs, nil
	case "$count":
		field, ok := arg.(string)
		if !ok || field == "" {
			return nil, fmt.Errorf("%w: $count requires a field name", ErrUnsupported)
		}
		return []bson.M{{field: int32(len(docs))}}, nil
	}
	return nil, fmt.Errorf("%w: stage %s", ErrUnsupported, name)
}

func filterDocs(docs []bson.M, filter bson.M) ([]bson.M, error) {
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func sortDocs(docs []bson.M, order bson.D) {
	if len(order) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b bson.M) int {
		for _, e := range order {
			dir := 1
			if d, ok := toFloat(e.Value); ok && d < 0 {
				dir = -1
			}
			va, _ := lookup(a, e.Key)
			vb, _ := lookup(b, e.Key)
			if c, ok := compare(va, vb); ok && c != 0 {
				return c * dir
			}
		}
		return 0
	})
}
