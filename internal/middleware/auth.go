package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/mealsync/internal/auth"
)

type contextKey int

const (
	userIDKey contextKey = iota
	emailKey
	tokenIDKey
	tokenExpiryKey
)

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// GetUserID returns the authenticated user id, or "" for anonymous calls.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

func GetEmail(ctx context.Context) string {
	v, _ := ctx.Value(emailKey).(string)
	return v
}

// GetTokenID returns the id of the presented access token.
func GetTokenID(ctx context.Context) string {
	v, _ := ctx.Value(tokenIDKey).(string)
	return v
}

func GetTokenExpiry(ctx context.Context) time.Time {
	v, _ := ctx.Value(tokenExpiryKey).(time.Time)
	return v
}

// WithClaims returns ctx carrying the identity in claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.UserID)
	ctx = context.WithValue(ctx, emailKey, claims.Email)
	ctx = context.WithValue(ctx, tokenIDKey, claims.ID)
	if claims.ExpiresAt != nil {
		ctx = context.WithValue(ctx, tokenExpiryKey, claims.ExpiresAt.Time)
	}
	return ctx
}

// Auth returns an interceptor that resolves bearer tokens into the caller's
// identity. Procedures in required fail with Unauthenticated unless a
// valid, unrevoked token is presented. Everything else runs anonymously
// when the token is missing or bad.
func Auth(jwtManager *auth.JWTManager, revoked RevocationChecker, required map[string]bool) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			claims, err := bearerClaims(ctx, jwtManager, revoked, req.Header().Get("Authorization"))
			switch {
			case err == nil:
				return next(WithClaims(ctx, claims), req)
			case errors.Is(err, errLookup):
				return nil, connect.NewError(connect.CodeInternal, err)
			case required[req.Spec().Procedure]:
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			default:
				return next(ctx, req)
			}
		}
	}
}

var errLookup = errors.New("revocation lookup failed")

func bearerClaims(ctx context.Context, jwtManager *auth.JWTManager, revoked RevocationChecker, header string) (*auth.Claims, error) {
	if header == "" {
		return nil, auth.ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrInvalidToken
	}

	claims, err := jwtManager.Validate(token)
	if err != nil {
		return nil, err
	}

	isRevoked, err := revoked.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errors.Join(errLookup, err)
	}
	if isRevoked {
		return nil, auth.ErrRevokedToken
	}
	return claims, nil
}
