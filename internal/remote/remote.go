// Package remote is the client side of the per-identity document store.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/spendtrack/internal/models"
)

// Store is the remote record store for one identity's expense collection
// and settings document.
type Store interface {
	// Subscribe streams the owner's expenses, newest first. onChange fires
	// once with the current state and again after every change by any
	// client of the owner. onError fires at most once, after which the
	// subscription is dead. The returned function stops the subscription;
	// it may be called more than once.
	Subscribe(owner string, onChange func([]models.Expense), onError func(error)) (unsubscribe func())

	// Add creates an expense and returns the id assigned by the store.
	Add(ctx context.Context, owner string, in models.ExpenseInput) (string, error)

	// Remove deletes an expense. Unknown ids succeed.
	Remove(ctx context.Context, owner, id string) error

	// GetSettings reads the owner's settings document.
	GetSettings(ctx context.Context, owner string) (models.Settings, error)

	// MergeSettings writes the provided fields and returns the merged document.
	MergeSettings(ctx context.Context, owner string, patch models.SettingsPatch) (models.Settings, error)
}

// ErrStreamClosed is reported when the server ends a subscription.
var ErrStreamClosed = errors.New("subscription closed by server")

// WriteError reports a failed remote mutation.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a failed remote read or a broken subscription.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
