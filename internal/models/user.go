package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
//
// On the client only the identity fields (ID, Email, DisplayName, PhotoURL)
// are populated, decoded from the session token.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	// Remote expense and settings documents are namespaced by it.
	ID string

	// Email is the user's email address (unique).
	Email string

	// DisplayName is the name shown in the UI.
	DisplayName string

	// PhotoURL is an optional avatar URL.
	PhotoURL string

	// PasswordHash is the bcrypt hash of the user's password. Server only.
	PasswordHash string

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last account change.
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
