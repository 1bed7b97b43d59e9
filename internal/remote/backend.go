// Package remote is the typed access layer to the remote row store, object
// store and auth service. It knows tables and columns, not recipes.
package remote

import (
	"context"
	"time"

	"github.com/mmynk/mealsync/internal/models"
)

// DefaultIDField is the identifier column assumed when a query restricts by
// id set without naming the column.
const DefaultIDField = "id"

// Row is one remote record keyed by column name.
type Row map[string]any

// Embed joins rows of another table into each selected row under As (or the
// table name). A row matches when its ForeignField equals the parent's
// LocalField. Many embeds produce a list; otherwise the first match or nil.
type Embed struct {
	Table        string
	LocalField   string
	ForeignField string
	Many         bool
	As           string
}

// Key returns the field name the embed is stored under.
func (e Embed) Key() string {
	if e.As != "" {
		return e.As
	}
	return e.Table
}

// Query narrows a select.
//
// Filter is conjunctive exact-match equality on named columns. IDs, when
// non-nil, restricts rows to those whose IDField value is in the set; an
// empty non-nil set matches nothing.
type Query struct {
	Filter  map[string]any
	IDField string
	IDs     []string
	Embeds  []Embed
}

// RowStore is the row surface of the backend. Each call is one round trip.
type RowStore interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows []Row) error
	Update(ctx context.Context, table string, patch Row, eqField string, eqValue any) error
}

// ObjectStore is the binary object surface of the backend.
type ObjectStore interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Upload(ctx context.Context, bucket, path string, data []byte, mimeType string) error
}

// AuthSession is the payload returned by a successful sign-in.
type AuthSession struct {
	User        *models.User
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService is the auth surface of the backend.
type AuthService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignOut(ctx context.Context) error
	// GetUser returns the user of the live session, or an ErrAuth failure
	// when there is none.
	GetUser(ctx context.Context) (*models.User, error)
}

// Backend is the full remote service.
type Backend interface {
	RowStore
	ObjectStore
	AuthService
}
