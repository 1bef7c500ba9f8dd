// Package telemetry wires CrabPot's structured logging and tracing, kept
// as a small standalone package so cmd/crabpot can set both up in one call
// instead of each component configuring its own.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the root *slog.Logger, writing to stderr with a text
// handler so stdout stays free for any interactive output a subcommand
// prints directly to the operator.
func NewLogger(levelName string, devMode bool) *slog.Logger {
	level := ParseLevel(levelName)
	if devMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	logger.Debug("log level configured", "level", levelName, "effective", level.String())
	return logger
}

// ParseLevel converts a config log level name to slog.Level, defaulting to
// Info for unrecognized values rather than erroring, since a typo'd log
// level shouldn't keep the sandbox from starting.
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
