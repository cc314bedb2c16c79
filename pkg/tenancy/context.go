package tenancy

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/mongotenant/pkg/logger"
	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

type contextKey struct{}

// WithTenantContext stores a tenant id in ctx.
func WithTenantContext(ctx context.Context, tenantID any) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// TenantFromContext returns the tenant id stored by WithTenantContext.
func TenantFromContext(ctx context.Context) (any, bool) {
	id := ctx.Value(contextKey{})
	return id, id != nil
}

// FromContext binds m to the tenant carried by ctx. String ids are cast to
// the plugin's tenant id type, so a hex id read from a request header binds
// as an ObjectID on objectid-typed tenants.
func FromContext(ctx context.Context, m odm.Model) (odm.Model, error) {
	id, ok := TenantFromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	p, ok := PluginOf(m)
	if !ok {
		return nil, ErrNotInstalled
	}
	return ByTenant(m, p.TenantIDType().Cast(id))
}

// LoggerExtractor returns a logger.ContextExtractor adding the context's
// tenant id to log records.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := TenantFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return logger.Tenant(id), true
	}
}
