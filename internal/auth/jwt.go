package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mmynk/mealsync/internal/models"
)

// Issuer is stamped on every access token and required on validation.
const Issuer = "mealsync-backend"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
	ErrRevokedToken = errors.New("session has been signed out")
)

// JWTManager issues and checks the HS256 access tokens handed out by
// SignInWithPassword.
type JWTManager struct {
	secretKey []byte
	ttl       time.Duration
	parser    *jwt.Parser
}

// Claims identify the signed-in user. RegisteredClaims.ID is the token id
// recorded on sign-out so the token stops working before it expires.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewJWTManager(secretKey string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// TTL returns how long issued tokens stay valid.
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// Generate issues a token for user and returns it with its expiry.
func (m *JWTManager) Generate(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature, issuer and expiry and returns the claims.
// It does not consult the revocation list.
func (m *JWTManager) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
