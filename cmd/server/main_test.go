package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendtrack/internal/config"
)

func TestCORSMiddleware(t *testing.T) {
	called := false
	handler := corsMiddleware("https://app.example.com", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/spendtrack.v1.ExpenseService/AddExpense", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.False(t, called, "preflight must not reach the handler")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, called)
}

func TestOpenStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.db")
	store, err := openStore(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	defer store.Close()

	settings, err := store.GetSettings(context.Background(), "someone")
	require.NoError(t, err)
	assert.Equal(t, "USD", settings.Currency)
}
