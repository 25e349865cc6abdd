// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// Output formats accepted by Setup.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configure Setup.
type Options struct {
	Level  string
	Format string    // FormatText or FormatJSON
	File   io.Writer // optional second destination, always text
}

// Setup builds a logger writing to console and, if set, opts.File.
// Timestamps are RFC3339 in UTC.
func Setup(console io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var consoleHandler slog.Handler
	if console != nil {
		if strings.EqualFold(opts.Format, FormatJSON) {
			consoleHandler = slog.NewJSONHandler(console, handlerOpts)
		} else {
			consoleHandler = slog.NewTextHandler(console, handlerOpts)
		}
	}

	switch {
	case opts.File == nil && consoleHandler == nil:
		return slog.New(slog.NewTextHandler(io.Discard, handlerOpts))
	case opts.File == nil:
		return slog.New(consoleHandler)
	case consoleHandler == nil:
		return slog.New(slog.NewTextHandler(opts.File, handlerOpts))
	}
	return slog.New(teeHandler{console: consoleHandler, file: slog.NewTextHandler(opts.File, handlerOpts)})
}
