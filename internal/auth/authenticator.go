// Package auth covers both ends of sign-in: the server verifies credentials
// and issues JWTs, the client Session keeps the token and reports who is
// signed in.
package auth

import (
	"context"

	"github.com/mmynk/spendtrack/internal/models"
)

var _ Authenticator = (*PasswordAuthenticator)(nil)

// Authenticator verifies account credentials for the auth service.
type Authenticator interface {
	// Register creates an account. The display name defaults to the local
	// part of the email when empty.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account for email when credential matches,
	// or ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential rejects credentials that cannot be registered.
	ValidateCredential(credential string) error
}
