package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/storage"
)

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", user.Email).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, user.Email)
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *SQLiteStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE ` + column + ` = ?
	`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}

// RevokeToken records a signed-out token until it would have expired.
// Expired entries are pruned on the way.
func (s *SQLiteStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at < ?", time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to prune revoked tokens: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)",
		tokenID, expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether the token was signed out.
func (s *SQLiteStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM revoked_tokens WHERE token_id = ?", tokenID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}
