package service

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/spendtrack/internal/auth"
	"github.com/mmynk/spendtrack/internal/metrics"
	"github.com/mmynk/spendtrack/internal/middleware"
	"github.com/mmynk/spendtrack/internal/storage"
)

// Deps holds what the document service needs.
type Deps struct {
	Store         storage.Store
	Authenticator auth.Authenticator
	JWTManager    *auth.JWTManager
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Logger may be nil.
	Logger *slog.Logger
}

// NewMux mounts the auth and expense services. Expense procedures require
// a bearer token; auth procedures are public.
func NewMux(d Deps) *http.ServeMux {
	logging := middleware.NewLoggingInterceptor(d.Metrics)

	mux := http.NewServeMux()

	authPath, authHandler := NewAuthService(d.Authenticator, d.JWTManager, d.Logger).Handler(
		connect.WithInterceptors(logging),
	)
	mux.Handle(authPath, authHandler)

	expensePath, expenseHandler := NewExpenseService(d.Store, NewHub(), d.Metrics).Handler(
		connect.WithInterceptors(logging, middleware.RequireAuth(d.JWTManager)),
	)
	mux.Handle(expensePath, expenseHandler)

	return mux
}
