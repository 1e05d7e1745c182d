// Package logging configures log/slog for spendtrack binaries.
//
// The CLI logs colored, human-oriented lines to stderr through tint; the
// server logs JSON to stdout. Both take their level from configuration with
// the LOG_LEVEL environment variable as an override:
//
//	logging.SetupCLI(cfg.Log.Level)
//	logging.SetupServer(cfg.Log.Level)
//
// LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// SetupCLI installs a colored tint handler on stderr as the default logger.
func SetupCLI(level string) {
	slog.SetDefault(slog.New(NewTint(os.Stderr, resolve(level))))
}

// SetupServer installs a JSON handler on stdout as the default logger.
func SetupServer(level string) {
	slog.SetDefault(slog.New(NewJSON(os.Stdout, resolve(level))))
}

// NewTint returns a colored text handler.
func NewTint(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level <= slog.LevelDebug,
	})
}

// NewJSON returns a structured JSON handler.
func NewJSON(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func resolve(configured string) slog.Level {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		return ParseLevel(env)
	}
	return ParseLevel(configured)
}
