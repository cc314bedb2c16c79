//go:build !go1.24

package logger

import (
	"context"
	"log/slog"
)

// discardHandler mirrors slog.DiscardHandler (Go 1.24+) for older toolchains.
var discardHandler slog.Handler = discardHandlerImpl{}

type discardHandlerImpl struct{}

func (discardHandlerImpl) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandlerImpl) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandlerImpl) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandlerImpl) WithGroup(string) slog.Handler           { return d }
