// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dshills/cascade/internal/config"
)

// Logger is a slog logger whose level can change after construction.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// ParseLevel parses a level name. "warning" is accepted for warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a logger writing to w, or os.Stderr when w is nil.
func New(cfg config.LoggingConfig, w io.Writer) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return &Logger{Logger: slog.New(h), level: level}, nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	if lvl != l.level.Level() {
		l.level.Set(lvl)
		l.Logger.Info("log level changed", "level", lvl.String())
	}
	return nil
}

// WithComponent returns a logger with the component attribute set.
func (l *Logger) WithComponent(component string) *slog.Logger {
	return l.Logger.With("component", component)
}
