package auth

import (
	"context"

	"github.com/mmynk/hogar/internal/models"
)

// Authenticator creates and signs in accounts. The auth service depends on this
// rather than on PasswordAuthenticator.
type Authenticator interface {
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)
	ValidateCredential(credential string) error
}

var _ Authenticator = (*PasswordAuthenticator)(nil)
