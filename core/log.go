package core

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(discardHandler{}))
}

// SetLogger installs the logger used by the engine and every backend.
// The engine is silent until one is set. Passing nil restores silence.
//
// Levels:
//   - Error: a device, viewport or resource could not be created
//   - Warn: a bounded budget ran out and an operation was skipped
//   - Info: device selection, viewport lifecycle
//   - Debug: per-frame diagnostics
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(discardHandler{})
	}
	logger.Store(l)
}

// Logger returns the current engine logger.
func Logger() *slog.Logger {
	return logger.Load()
}
