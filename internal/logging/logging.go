// Package logging builds the process-wide [log/slog] logger and carries it
// through request contexts. Handlers, pipelines and commands call
// [FromContext] rather than holding a logger of their own.
//
// Environment variables:
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
//	LOG_SOURCE = true                         (adds file:line, default off)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/docai-go/internal/version"
)

// serviceName is attached to every record.
const serviceName = "docai"

type contextKey struct{}

// Options selects the handler New builds.
type Options struct {
	// Level is the minimum severity emitted.
	Level slog.Level
	// Text selects the human-readable handler instead of JSON.
	Text bool
	// AddSource records the caller's file and line.
	AddSource bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_SOURCE.
func OptionsFromEnv() Options {
	source, _ := strconv.ParseBool(os.Getenv("LOG_SOURCE"))
	return Options{
		Level:     parseLevel(os.Getenv("LOG_LEVEL")),
		Text:      strings.EqualFold(os.Getenv("LOG_FORMAT"), "text"),
		AddSource: source,
	}
}

// New returns the stderr logger configured from the environment.
func New() *slog.Logger {
	return NewWithWriter(os.Stderr, OptionsFromEnv())
}

// NewWithWriter returns a logger writing to w. Every record carries the
// service name and build version.
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}
	var h slog.Handler = slog.NewJSONHandler(w, hopts)
	if opts.Text {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(h).With(
		slog.String("service", serviceName),
		slog.String("version", version.Version),
	)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or [slog.Default].
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
