// Package logger wraps log/slog behind a small interface so the rest of the
// orchestrator logs through one seam: leveled methods, a debug switch, a
// text/json format switch, and optional fan-out to a log file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the logging surface every component depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a Logger that prepends args to every subsequent call,
	// used by cmd/orchestrator to attach worker_id to each worker loop's
	// log lines.
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// Option configures a Logger built by NewLogger.
type Option func(*options)

type options struct {
	debug  bool
	format string
	quiet  bool
	writer io.Writer
	file   *os.File
}

// WithDebug enables debug-level output.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithFormat selects "text" (default) or "json" handler output.
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithQuiet suppresses the default stderr writer (useful when only
// WithLogFile is wanted, or in tests).
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// WithWriter sets the primary output writer, overriding the stderr default.
func WithWriter(w io.Writer) Option { return func(o *options) { o.writer = w } }

// WithLogFile adds a second handler writing JSON lines to f, fanned out
// alongside the primary writer via slog-multi.
func WithLogFile(f *os.File) Option { return func(o *options) { o.file = f } }

// NewLogger builds a Logger from the given options.
func NewLogger(opts ...Option) Logger {
	cfg := &options{format: "text", writer: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: true}

	var handlers []slog.Handler
	if !cfg.quiet {
		handlers = append(handlers, newHandler(cfg.format, cfg.writer, handlerOpts))
	}
	if cfg.file != nil {
		handlers = append(handlers, slog.NewJSONHandler(cfg.file, handlerOpts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, handlerOpts)
	case 1:
		handler = handlers[0]
	default:
		handler = slogmulti.Fanout(handlers...)
	}

	return &slogLogger{l: slog.New(handler)}
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// sourceSkip walks up past this package's own frames (runtime.Callers,
// runtimeCallers, logAt, and the exported Debug/Info/.../Debugf/Infof/...
// entry point) so AddSource reports the caller's file:line, not logger.go.
// The dispatch frame between the entry point and logAt (log, or
// logAtFromContext in context.go) is passed as extraSkip.
const sourceSkip = 4

// sourceSkipper lets the package-level, context-taking helpers in
// context.go (Debug(ctx, ...), Info(ctx, ...), ...) call logAt directly
// with their own dispatch frame counted in extraSkip, instead of going
// through a Logger method and adding further frames of indirection.
type sourceSkipper interface {
	logAt(level slog.Level, extraSkip int, msg string, args ...any)
}

func (s *slogLogger) log(level slog.Level, msg string, args ...any) {
	s.logAt(level, 1, msg, args...)
}

func (s *slogLogger) logAt(level slog.Level, extraSkip int, msg string, args ...any) {
	if !s.l.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtimeCallers(sourceSkip+extraSkip, pcs[:])
	r := slog.NewRecord(now(), level, msg, pcs[0])
	r.Add(args...)
	_ = s.l.Handler().Handle(context.Background(), r)
}

func (s *slogLogger) Debug(msg string, args ...any) { s.log(slog.LevelDebug, msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.log(slog.LevelInfo, msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.log(slog.LevelWarn, msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.log(slog.LevelError, msg, args...) }

func (s *slogLogger) Debugf(format string, args ...any) { s.log(slog.LevelDebug, fmt.Sprintf(format, args...)) }
func (s *slogLogger) Infof(format string, args ...any)  { s.log(slog.LevelInfo, fmt.Sprintf(format, args...)) }
func (s *slogLogger) Warnf(format string, args ...any)  { s.log(slog.LevelWarn, fmt.Sprintf(format, args...)) }
func (s *slogLogger) Errorf(format string, args ...any) { s.log(slog.LevelError, fmt.Sprintf(format, args...)) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}
