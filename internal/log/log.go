// Package log is a thin wrapper over slog that stamps every record
// with the emitting component.
package log

import (
	"context"
	"log/slog"
	"os"
)

// Component names used across the system.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentEngine  = "engine"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentNotify  = "notify"
	ComponentBlob    = "blob"
	ComponentImport  = "import"
)

type Logger struct {
	*slog.Logger
	component string
}

// New builds a text logger on stdout at the given level.
func New(level slog.Level, component string) *Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger:    slog.New(handler).With("component", component),
		component: component,
	}
}

// With derives a logger carrying extra attributes, keeping the handler
// and component.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
	}
}

// SetDefault installs the logger as the process-wide slog default, so
// packages logging through slog.InfoContext pick it up.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

// LevelFromEnv maps LOG_LEVEL to a slog level, defaulting to info.
func LevelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey struct{}

// IntoContext stores the logger in ctx; the HTTP guard uses it to hand
// the request-scoped logger down to handlers.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx, or a default-backed
// one when absent.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}
