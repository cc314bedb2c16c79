package tenancy

import "errors"

var (
	// ErrNotInstalled is returned when a model's schema does not carry the plugin.
	ErrNotInstalled = errors.New("tenancy: plugin not installed on model")

	// ErrNoTenant is returned when a context carries no tenant identifier.
	ErrNoTenant = errors.New("tenancy: no tenant in context")

	// ErrInvalidConfig is returned when options cannot be parsed.
	ErrInvalidConfig = errors.New("tenancy: invalid configuration")
)
