package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

var defaultLogger = NewLogger()

// WithContext attaches l to ctx so downstream code can log via the package
// level functions below without threading a Logger through every call.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the Logger attached to ctx, or a package-default
// logger if none was attached.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return defaultLogger
}

// logAtFromContext dispatches through sourceSkipper with one extra frame
// skipped, since FromContext(ctx).<Level>(...) would otherwise attribute the
// log line to this file instead of the caller. Loggers that don't implement
// sourceSkipper (e.g. a test double) fall back to the plain interface call,
// which reports this file as the source — acceptable for non-slog loggers.
func logAtFromContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	l := FromContext(ctx)
	if s, ok := l.(sourceSkipper); ok {
		s.logAt(level, 1, msg, args...)
		return
	}
	switch level {
	case slog.LevelDebug:
		l.Debug(msg, args...)
	case slog.LevelWarn:
		l.Warn(msg, args...)
	case slog.LevelError:
		l.Error(msg, args...)
	default:
		l.Info(msg, args...)
	}
}

func Debug(ctx context.Context, msg string, args ...any) {
	logAtFromContext(ctx, slog.LevelDebug, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	logAtFromContext(ctx, slog.LevelInfo, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logAtFromContext(ctx, slog.LevelWarn, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	logAtFromContext(ctx, slog.LevelError, msg, args...)
}
