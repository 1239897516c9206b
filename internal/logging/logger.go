package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls how the process logger is built.
type Options struct {
	Level   string
	Format  string
	Output  string
	Version string
}

type contextKey struct{}

var loggerKey = contextKey{}

var defaultLogger = New(Options{Level: "info", Format: "text", Version: "dev"})

// New creates a slog logger with the service default attributes.
func New(opts Options) *slog.Logger {
	var output io.Writer
	switch strings.ToLower(opts.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, handlerOpts)
	default:
		handler = slog.NewTextHandler(output, handlerOpts)
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "homehub"),
		slog.String("version", version),
	})
	return slog.New(handler)
}

// ParseLevel converts a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault replaces the logger returned by Ctx when the context carries none.
func SetDefault(l *slog.Logger) {
	if l == nil {
		return
	}
	defaultLogger = l
	slog.SetDefault(l)
}

// Ctx returns the logger stored in ctx, or the process default.
func Ctx(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return defaultLogger
}

// With returns a copy of ctx carrying l.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Discard is a logger that drops everything. Tests use it to keep output quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
