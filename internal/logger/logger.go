// Package logger provides the structured logger used across gps-locker.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so packages share one concrete type.
type Logger struct {
	*slog.Logger
}

// New returns a text logger writing to stderr.
func New(level slog.Level) *Logger {
	return NewLogger(level, os.Stderr)
}

// NewLogger returns a text logger writing to w.
func NewLogger(level slog.Level, w io.Writer) *Logger {
	return &Logger{slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))}
}

// Discard returns a logger that drops everything. Handy for tests.
func Discard() *Logger {
	return NewLogger(slog.LevelError+4, io.Discard)
}

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Err wraps an error as a log attribute.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}
