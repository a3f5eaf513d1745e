// Package log wraps log/slog with component-scoped loggers and the standard
// field names used across the ledger.
package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Logger is a slog.Logger bound to a component. A Logger without an explicit
// base resolves slog.Default() on every call, so package-level loggers pick up
// the handler installed by SetDefault at startup.
type Logger struct {
	base      *slog.Logger
	component string
}

func New(base *slog.Logger, component string) *Logger {
	return &Logger{base: base, component: component}
}

// WithComponent returns a logger on the default handler.
func WithComponent(component string) *Logger {
	return &Logger{component: component}
}

// NewHandler builds the handler selected by LOG_FORMAT ("text" or "json")
// and LOG_LEVEL ("debug", "info", "warn", "error").
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to slog.Level, defaulting to Info.
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

// SetDefault installs h as the process-wide handler.
func SetDefault(h slog.Handler) {
	slog.SetDefault(slog.New(h))
}

func (l *Logger) slog() *slog.Logger {
	if l.base != nil {
		return l.base
	}
	return slog.Default()
}

// With returns a logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{base: l.slog().With(args...), component: l.component}
}

func (l *Logger) Component() string { return l.component }

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	l.slog().Log(ctx, level, msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

func (l *Logger) LogContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.log(ctx, level, msg, args)
}
