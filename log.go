package paperbase

import (
	"context"
	"log/slog"
)

// discardLogHandler drops all records. Components default to it so logging
// is strictly opt-in.
type discardLogHandler struct{}

func (discardLogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardLogHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardLogHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardLogHandler) WithGroup(string) slog.Handler           { return d }

// NopLogger returns a logger that discards everything.
func NopLogger() *slog.Logger {
	return slog.New(discardLogHandler{})
}
