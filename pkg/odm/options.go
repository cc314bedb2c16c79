package odm

import (
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultDiscriminatorKey is the path that stores a document's discriminator value.
const DefaultDiscriminatorKey = "__t"

// FindOption configures Find.
type FindOption func(*FindOptions)

// WithSort orders the result set.
func WithSort(sort bson.D) FindOption {
	return func(o *FindOptions) { o.Sort = sort }
}

// WithLimit caps the number of returned documents.
func WithLimit(n int64) FindOption {
	return func(o *FindOptions) { o.Limit = n }
}

// WithSkip skips the first n documents.
func WithSkip(n int64) FindOption {
	return func(o *FindOptions) { o.Skip = n }
}

type updateConfig struct {
	overwrite bool
}

// UpdateOption configures update operations.
type UpdateOption func(*updateConfig)

// WithOverwrite treats the update payload as a full replacement document.
func WithOverwrite() UpdateOption {
	return func(c *updateConfig) { c.overwrite = true }
}

func newUpdateConfig(opts []UpdateOption) updateConfig {
	var cfg updateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type modelConfig struct {
	collection string
}

// ModelOption configures model registration.
type ModelOption func(*modelConfig)

// WithCollection sets the collection name. Defaults to the lower-cased model
// name with an "s" suffix.
func WithCollection(name string) ModelOption {
	return func(c *modelConfig) {
		if name != "" {
			c.collection = name
		}
	}
}

type discriminatorConfig struct {
	key   string
	value string
}

// DiscriminatorOption configures a discriminator model.
type DiscriminatorOption func(*discriminatorConfig)

// WithDiscriminatorKey sets the path storing the discriminator value on a root
// model's first discriminator. Nested discriminators reuse their parent's key.
func WithDiscriminatorKey(key string) DiscriminatorOption {
	return func(c *discriminatorConfig) {
		if key != "" {
			c.key = key
		}
	}
}

// WithDiscriminatorValue sets the stored value. Defaults to the model name.
func WithDiscriminatorValue(value string) DiscriminatorOption {
	return func(c *discriminatorConfig) {
		if value != "" {
			c.value = value
		}
	}
}

// DBOption configures a DB.
type DBOption func(*DB)

// WithLogger sets the logger used by the connection.
func WithLogger(l *slog.Logger) DBOption {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}
