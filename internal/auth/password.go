package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters and contain a digit")
	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrEmailExists        = errors.New("user already registered")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// UserStorage is the slice of storage.UserStore the authenticator needs.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// PasswordAuthenticator keeps bcrypt hashes of account passwords. Emails
// are matched case-insensitively.
type PasswordAuthenticator struct {
	users UserStorage
	cost  int
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

func NewPasswordAuthenticator(users UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	a.cost = cost
	return a
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail applies the same loose check the sign-up form uses.
func ValidateEmail(email string) error {
	local, domain, ok := strings.Cut(NormalizeEmail(email), "@")
	if !ok || local == "" || domain == "" {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword requires MinPasswordLength characters including a digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || !strings.ContainsFunc(password, unicode.IsDigit) {
		return ErrWeakPassword
	}
	return nil
}

func (a *PasswordAuthenticator) Register(ctx context.Context, email, password string) (*models.User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	if existing, err := a.users.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := models.NewUser(email, string(hash))

	switch err := a.users.CreateUser(ctx, user); {
	case errors.Is(err, storage.ErrDuplicateKey):
		return nil, ErrEmailExists
	case err != nil:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil || user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

