package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestResolvePrefersEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	assert.Equal(t, slog.LevelError, resolve("debug"))

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, slog.LevelDebug, resolve("debug"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewJSON(&buf, slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept", "expense_id", "e1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "e1", line["expense_id"])
}

func TestNewTint(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTint(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("Expense added", "amount", 12.5)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Expense added")
}
