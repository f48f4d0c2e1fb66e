package embedb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with embedb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCollection adds a collection field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("collection", name),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// Infof logs a formatted message at info level. It adapts the Logger to
// the printf-style interfaces the store, maintenance and server packages
// accept.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// LogMutation logs one write batch against a collection.
func (l *Logger) LogMutation(ctx context.Context, op string, collection string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mutation failed",
			"op", op,
			"collection", collection,
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "mutation completed",
			"op", op,
			"collection", collection,
			"count", count,
		)
	}
}

// LogGet logs a filtered read against a collection.
func (l *Logger) LogGet(ctx context.Context, collection string, matched int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "get failed",
			"collection", collection,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "get completed",
			"collection", collection,
			"matched", matched,
		)
	}
}

// LogValidation logs a batch rejected at the validation gate.
func (l *Logger) LogValidation(ctx context.Context, op string, err error) {
	l.WarnContext(ctx, "validation rejected batch",
		"op", op,
		"error", err,
	)
}

// LogSkippedIDs logs records a mutation left out: adds of IDs that are
// already live, updates of IDs that are not.
func (l *Logger) LogSkippedIDs(ctx context.Context, op string, collection string, ids []string) {
	l.WarnContext(ctx, "skipped records",
		"op", op,
		"collection", collection,
		"count", len(ids),
		"ids", ids,
	)
}

// LogMaintenance logs a completed or failed maintenance run.
func (l *Logger) LogMaintenance(ctx context.Context, purged int64, reclaimed int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "maintenance failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "maintenance completed",
			"entries_purged", purged,
			"bytes_reclaimed", reclaimed,
		)
	}
}

// LogBackup logs a shipped snapshot.
func (l *Logger) LogBackup(ctx context.Context, location string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup stored",
			"location", location,
		)
	}
}
