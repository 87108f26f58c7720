package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Level comes from
// POLIS_LOG_LEVEL (debug, info, warn, error); output is JSON on stdout.
func New() *slog.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("POLIS_LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
