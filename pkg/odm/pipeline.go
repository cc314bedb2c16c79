package odm

import (
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MatchFirst returns a copy of pipeline whose first stage filters by cond.
// An empty pipeline becomes a single $match stage, a leading $match gets cond
// merged into it (cond wins on conflicting keys), and any other pipeline gets
// a new $match stage prepended.
func MatchFirst(pipeline []bson.M, cond bson.M) []bson.M {
	out := make([]bson.M, 0, len(pipeline)+1)
	if len(pipeline) > 0 {
		if match, ok := AsM(pipeline[0]["$match"]); ok {
			merged := CloneM(match)
			maps.Copy(merged, cond)
			first := maps.Clone(pipeline[0])
			first["$match"] = merged
			out = append(out, first)
			return append(out, pipeline[1:]...)
		}
	}
	out = append(out, bson.M{"$match": maps.Clone(cond)})
	return append(out, pipeline...)
}
