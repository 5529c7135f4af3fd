// Package logger provides structured logging for the scorecast runtime.
//
// It wraps log/slog with a process-wide DefaultLogger, level functions that
// mirror the slog API, and a ContextHandler that enriches records with
// request-scoped fields carried in context (game id, session id, namespace).
// LOG_LEVEL selects the initial level; SetLevel and SetVerbose replace the
// logger at runtime.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// DefaultLogger is the global structured logger. It is replaced wholesale by
// SetLevel, which keeps concurrent use safe without locking.
var DefaultLogger *slog.Logger

func init() {
	DefaultLogger = newLogger(levelFromEnv(os.Getenv("LOG_LEVEL")))
}

// levelFromEnv maps a LOG_LEVEL value to a slog level, defaulting to info.
func levelFromEnv(s string) slog.Level {
	switch strings.ToLower(s) {
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

func newLogger(level slog.Level) *slog.Logger {
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(NewContextHandler(inner))
}

// SetLevel replaces DefaultLogger with one logging at the given level.
func SetLevel(level slog.Level) {
	DefaultLogger = newLogger(level)
}

// SetVerbose is a convenience for command-line verbose flags: debug when
// true, info otherwise.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// The level functions below mirror the slog API on DefaultLogger. The
// Context variants pick up fields stored via WithGameID and friends.

// Info logs at info level with key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs at info level with context enrichment.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs at debug level with key-value attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs at debug level with context enrichment.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs at warn level with key-value attributes.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs at warn level with context enrichment.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs at error level with key-value attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs at error level with context enrichment.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// redactedSuffix replaces the hidden portion of a redacted token.
const redactedSuffix = "...[REDACTED]"

// RedactToken masks a client auth token for logging. Long tokens keep their
// first four characters for correlation; anything eight characters or
// shorter is hidden entirely.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) > 8 {
		return token[:4] + redactedSuffix
	}
	return "[REDACTED]"
}
