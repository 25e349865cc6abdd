package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to the console handler and the file handler.
// A failure on one side does not drop the record from the other.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.console.Enabled(ctx, level) || t.file.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var consoleErr, fileErr error
	if t.console.Enabled(ctx, r.Level) {
		consoleErr = t.console.Handle(ctx, r.Clone())
	}
	if t.file.Enabled(ctx, r.Level) {
		fileErr = t.file.Handle(ctx, r)
	}
	return errors.Join(consoleErr, fileErr)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{console: t.console.WithAttrs(attrs), file: t.file.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return teeHandler{console: t.console.WithGroup(name), file: t.file.WithGroup(name)}
}
