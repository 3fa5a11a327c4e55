// Package log provides structured logging for pubsub-ops.
package log

import (
	"log/slog"
	"os"
)

// Logger is the logging interface the rest of the module depends on, so
// components never reach for slog directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

// New creates a Logger writing text records to stderr; stdout stays free
// for tables and JSON output. Verbose enables debug records.
func New(verbose bool) Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return FromSlog(slog.New(handler))
}

// FromSlog wraps an existing slog.Logger.
func FromSlog(l *slog.Logger) Logger {
	return &slogAdapter{l: l}
}

var defaultLogger Logger

// Init sets the process-wide logger; called once at startup, before any
// component asks for it.
func Init(verbose bool) {
	defaultLogger = New(verbose)
}

// GetLogger returns the process-wide logger, creating a non-verbose one
// when Init has not run.
func GetLogger() Logger {
	if defaultLogger == nil {
		defaultLogger = New(false)
	}
	return defaultLogger
}
