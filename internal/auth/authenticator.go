// Package auth implements the backend's account and session handling:
// password credentials hashed with bcrypt and stateless JWT access tokens
// that can be revoked on sign-out.
package auth

import (
	"context"

	"github.com/mmynk/mealsync/internal/models"
)

// Authenticator backs the SignUp and SignInWithPassword procedures.
type Authenticator interface {
	// Register creates an account. It fails with ErrInvalidEmail,
	// ErrWeakPassword or ErrEmailExists.
	Register(ctx context.Context, email, credential string) (*models.User, error)

	// Authenticate returns the account for matching credentials, or
	// ErrInvalidCredentials without saying which part was wrong.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)
}
