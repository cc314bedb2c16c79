package tenancy

import (
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// StaticName is the static under which the plugin instance is attached to a
// schema.
const StaticName = "mongoTenant"

// Accessor binds a model to a tenant. It is installed as a schema static
// under the configured accessor method name.
type Accessor func(m odm.Model, tenantID any) odm.Model

// TenantScoped is implemented by bound models. Unbound models do not
// implement it.
type TenantScoped interface {
	HasTenantContext() bool
	Tenant() any
}

// Introspector is the configuration surface compared when tenant context
// crosses from one model to another.
type Introspector interface {
	Enabled() bool
	TenantIDKey() string
	AccessorMethod() string
}

// Plugin adds document-level multi-tenancy to a schema. One instance is
// applied to exactly one schema.
type Plugin struct {
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
	cache   *modelCache
}

// New creates a plugin. Options are resolved once and never change.
func New(opts ...Option) *Plugin {
	cfg := config{
		opts:   DefaultOptions(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Plugin{
		opts:    cfg.opts.normalize(),
		logger:  cfg.logger,
		metrics: cfg.metrics,
		cache:   newModelCache(),
	}
}

// Apply creates a plugin and applies it to schema.
func Apply(schema *odm.Schema, opts ...Option) (*Plugin, error) {
	p := New(opts...)
	if err := schema.Use(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply installs the tenant field, scopes unique indexes, attaches the
// statics and registers the interception hooks. It must be called once per
// schema.
func (p *Plugin) Apply(s *odm.Schema) error {
	if s == nil {
		return odm.ErrNilSchema
	}
	p.extendSchema(s)
	p.compoundIndexes(s)
	p.injectAPI(s)
	p.installMiddleware(s)
	return nil
}

func (p *Plugin) injectAPI(s *odm.Schema) {
	s.Static(StaticName, p)
	s.Static(p.opts.AccessorMethod, Accessor(p.bind))
}

// bind returns the bound model for tenantID, or the unbound model when the
// plugin is disabled.
func (p *Plugin) bind(m odm.Model, tenantID any) odm.Model {
	base := m.Base()
	if !p.opts.Enabled {
		return base
	}
	bound, hit := p.cache.get(base, tenantID, p.createTenantAwareModel)
	p.metrics.lookup(base.Name(), hit)
	return bound
}

// Options returns a copy of the resolved options.
func (p *Plugin) Options() Options { return p.opts }

func (p *Plugin) Enabled() bool               { return p.opts.Enabled }
func (p *Plugin) TenantIDKey() string         { return p.opts.TenantIDKey }
func (p *Plugin) TenantIDType() odm.FieldType { return p.opts.TenantIDType }
func (p *Plugin) AccessorMethod() string      { return p.opts.AccessorMethod }
func (p *Plugin) TenantIDRequired() bool      { return p.opts.RequireTenantID }

// CachedModels returns the number of bound models built so far.
func (p *Plugin) CachedModels() int { return p.cache.len() }

// IsCompatibleTo reports whether tenant context may propagate to a model
// carrying other: it must expose the introspection surface and use the same
// tenant id key.
func (p *Plugin) IsCompatibleTo(other any) bool {
	if other == nil {
		return false
	}
	if op, ok := other.(*Plugin); ok && op == nil {
		return false
	}
	o, ok := other.(Introspector)
	if !ok {
		return false
	}
	return o.TenantIDKey() == p.opts.TenantIDKey
}

// PluginOf returns the plugin installed on m's schema.
func PluginOf(m odm.Model) (*Plugin, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.Static(StaticName)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Plugin)
	return p, ok && p != nil
}

// AccessorOf returns the accessor installed on m under name.
func AccessorOf(m odm.Model, name string) (Accessor, bool) {
	v, ok := m.Static(name)
	if !ok {
		return nil, false
	}
	acc, ok := v.(Accessor)
	return acc, ok && acc != nil
}

// ByTenant binds m to tenantID through the accessor installed on its schema.
func ByTenant(m odm.Model, tenantID any) (odm.Model, error) {
	p, ok := PluginOf(m)
	if !ok {
		return nil, ErrNotInstalled
	}
	acc, ok := AccessorOf(m, p.AccessorMethod())
	if !ok {
		return nil, fmt.Errorf("%w: accessor %s missing", ErrNotInstalled, p.AccessorMethod())
	}
	return acc(m, tenantID), nil
}

// HasTenantContext reports whether x is a bound model or a document
// constructed by one.
func HasTenantContext(x any) bool {
	ts, ok := scoped(x)
	return ok && ts.HasTenantContext()
}

// TenantOf returns the tenant bound to a model or to a document's model.
func TenantOf(x any) (any, bool) {
	ts, ok := scoped(x)
	if !ok || !ts.HasTenantContext() {
		return nil, false
	}
	return ts.Tenant(), true
}

func scoped(x any) (TenantScoped, bool) {
	if doc, ok := x.(*odm.Document); ok {
		if doc == nil {
			return nil, false
		}
		x = doc.Model()
	}
	ts, ok := x.(TenantScoped)
	return ts, ok
}
