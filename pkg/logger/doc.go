// Package logger builds slog loggers for mongotenant components.
//
// New returns a *slog.Logger configured by functional options: output format
// (text or JSON), level, static attributes, and ContextExtractor callbacks
// that copy request-scoped values such as the bound tenant id from a
// context.Context onto every record logged with that context.
//
//	log := logger.New(
//		logger.WithDevelopment("billing"),
//		logger.WithContextExtractors(tenancy.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "invoice stored", logger.Model("Invoice"))
//
// The attribute helpers (Tenant, Model, Operation, Component, Error) keep key
// names consistent across packages. Error and Tenant return an empty Attr for
// nil input so call sites need no nil checks.
package logger
