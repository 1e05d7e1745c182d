// Package storage provides abstractions for the remote document store:
// per-user expense collections, per-user settings documents and accounts.
package storage

import (
	"context"

	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/rpc"
)

// Store defines the interface for document storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	// ListExpenses returns every expense owned by owner, newest date first.
	ListExpenses(ctx context.Context, owner string) ([]rpc.ExpenseDoc, error)

	// InsertExpense persists a new expense document. The store assigns
	// doc.ID and doc.CreatedAt; doc.Date is left as supplied.
	InsertExpense(ctx context.Context, doc *rpc.ExpenseDoc) error

	// DeleteExpense removes the owner's expense with the given id.
	// Deleting a missing id is not an error.
	DeleteExpense(ctx context.Context, owner, id string) error

	// GetSettings returns the owner's settings document, creating it with
	// defaults on first read.
	GetSettings(ctx context.Context, owner string) (models.Settings, error)

	// MergeSettings applies the provided fields to the owner's settings
	// document and returns the result.
	MergeSettings(ctx context.Context, owner string, patch models.SettingsPatch) (models.Settings, error)

	// CreateUser persists a new account.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns nil, nil if no account uses email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns nil, nil if no account has id.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
