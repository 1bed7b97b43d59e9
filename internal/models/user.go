package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
//
// On the client only ID and Email are populated; PasswordHash is filled by
// the development backend and never leaves it.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// Email is the user's email address (unique). Used for login.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"-"`

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64 `json:"created_at,omitempty"`

	// UpdatedAt is the Unix timestamp of the last account change.
	UpdatedAt int64 `json:"updated_at,omitempty"`
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Session is the process-wide authentication state.
// It is replaced wholesale on every transition, never mutated in place.
type Session struct {
	Authenticated bool
	User          *User
}

// Anonymous returns the unauthenticated session.
func Anonymous() Session {
	return Session{}
}

// Authenticated returns a session for the given user.
func Authenticated(user *User) Session {
	return Session{Authenticated: true, User: user}
}
