// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Setup builds the root logger. forceJSON selects JSON output regardless of
// the environment; otherwise JSON is used whenever stderr is not a terminal,
// so aggregated worker logs stay machine-readable while the local CLI stays
// legible.
func Setup(level string, forceJSON bool) *slog.Logger {
	handler := Handler(level, forceJSON, term.IsTerminal(int(os.Stderr.Fd())))
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Handler picks level and output encoding. Split out of Setup so the choice
// is testable without a real terminal.
func Handler(level string, forceJSON, terminal bool) slog.Handler {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if forceJSON || !terminal {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}
