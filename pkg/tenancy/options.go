package tenancy

import (
	"log/slog"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// Default option values.
const (
	DefaultTenantIDKey    = "tenant"
	DefaultAccessorMethod = "byTenant"
)

// Options is the resolved plugin configuration.
type Options struct {
	Enabled         bool          `env:"ENABLED" envDefault:"true" yaml:"enabled"`
	TenantIDKey     string        `env:"ID_KEY" envDefault:"tenant" yaml:"tenantIdKey"`
	TenantIDType    odm.FieldType `env:"ID_TYPE" envDefault:"string" yaml:"tenantIdType"`
	AccessorMethod  string        `env:"ACCESSOR_METHOD" envDefault:"byTenant" yaml:"accessorMethod"`
	RequireTenantID bool          `env:"REQUIRE_ID" envDefault:"false" yaml:"requireTenantId"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Enabled:        true,
		TenantIDKey:    DefaultTenantIDKey,
		TenantIDType:   odm.String,
		AccessorMethod: DefaultAccessorMethod,
	}
}

// normalize fills blank values with defaults.
func (o Options) normalize() Options {
	if o.TenantIDKey == "" {
		o.TenantIDKey = DefaultTenantIDKey
	}
	if o.TenantIDType == "" {
		o.TenantIDType = odm.String
	}
	if o.AccessorMethod == "" {
		o.AccessorMethod = DefaultAccessorMethod
	}
	return o
}

type config struct {
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Plugin.
type Option func(*config)

// WithOptions replaces the whole options record. Blank strings fall back to
// defaults.
func WithOptions(o Options) Option {
	return func(c *config) {
		c.opts = o
	}
}

// WithEnabled toggles the plugin. A disabled plugin leaves the schema
// untouched and its accessor returns the unbound model.
func WithEnabled(enabled bool) Option {
	return func(c *config) {
		c.opts.Enabled = enabled
	}
}

// WithTenantIDKey sets the document path holding the tenant identifier.
func WithTenantIDKey(key string) Option {
	return func(c *config) {
		if key != "" {
			c.opts.TenantIDKey = key
		}
	}
}

// WithTenantIDType sets the declared type of the tenant field.
func WithTenantIDType(t odm.FieldType) Option {
	return func(c *config) {
		if t != "" {
			c.opts.TenantIDType = t
		}
	}
}

// WithAccessorMethod sets the static name under which the tenant accessor is
// installed.
func WithAccessorMethod(name string) Option {
	return func(c *config) {
		if name != "" {
			c.opts.AccessorMethod = name
		}
	}
}

// WithRequireTenantID marks the tenant field as required.
func WithRequireTenantID(required bool) Option {
	return func(c *config) {
		c.opts.RequireTenantID = required
	}
}

// WithLogger sets the logger used for debug output of query rewrites.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables metric collection.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}
