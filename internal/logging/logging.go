// Package logging builds the structured logger used by reaper commands.
//
// Diagnostics go to stderr so that stdout stays reserved for reports. The
// default level is Warn; verbose mode lowers it to Debug.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config configures the logger. The zero value logs Warn and above as text
// on stderr.
type Config struct {
	Verbose bool
	JSON    bool
	// Writer overrides the destination; nil means stderr.
	Writer io.Writer
}

// Level returns the minimum level implied by cfg.
func (c Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level()}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
