// Package log provides structured logging for go-gaze.
// It wraps slog and always writes to stderr: stdout carries the gaze stream.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
	out    io.Writer = os.Stderr
)

// Init initializes the global logger with the specified level and format.
// Valid levels: "debug", "info", "warn", "error"
// Valid formats: "text", "json". GO_ENV=production forces json.
func Init(level, format string) {
	once.Do(func() {
		logger = New(out, level, format)
		slog.SetDefault(logger)
	})
}

// New builds a standalone logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	if strings.EqualFold(format, "json") || os.Getenv("GO_ENV") == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info", "text")
	}
	return logger
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
