package mongo

import (
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// FindOptions converts odm find options to driver options. Zero values are
// left unset.
func FindOptions(o odm.FindOptions) *options.FindOptionsBuilder {
	opts := options.Find()
	if len(o.Sort) > 0 {
		opts.SetSort(o.Sort)
	}
	if o.Limit > 0 {
		opts.SetLimit(o.Limit)
	}
	if o.Skip > 0 {
		opts.SetSkip(o.Skip)
	}
	return opts
}

// IndexModels converts schema indexes to driver index models.
// PreserveUniqueKey is schema metadata and is not sent to the server.
func IndexModels(indexes []odm.Index) []mongo.IndexModel {
	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, idx := range indexes {
		opts := options.Index()
		if idx.Options.Name != "" {
			opts.SetName(idx.Options.Name)
		}
		if idx.Options.Unique {
			opts.SetUnique(true)
		}
		if idx.Options.Sparse {
			opts.SetSparse(true)
		}
		if len(idx.Options.PartialFilterExpression) > 0 {
			opts.SetPartialFilterExpression(idx.Options.PartialFilterExpression)
		}
		if idx.Options.ExpireAfterSeconds != nil {
			opts.SetExpireAfterSeconds(*idx.Options.ExpireAfterSeconds)
		}
		models = append(models, mongo.IndexModel{Keys: idx.Keys, Options: opts})
	}
	return models
}
