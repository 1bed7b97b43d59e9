// Package storage provides abstractions for the backend's persistent data.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrInvalidField = errors.New("invalid field name")
	ErrMissingKey   = errors.New("row is missing its primary key")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrNotFound     = errors.New("not found")
)

// Table describes a row table: its primary key column and whether the key
// is assigned by the store when absent.
type Table struct {
	Name       string
	PrimaryKey string
	AutoID     bool
}

// Tables lists the tables served by the backend.
var Tables = map[string]Table{
	models.TableMeals:              {Name: models.TableMeals, PrimaryKey: models.ColumnIDMeal},
	models.TableIngredients:        {Name: models.TableIngredients, PrimaryKey: models.ColumnIDIngredient},
	models.TableSharedRecipes:      {Name: models.TableSharedRecipes, PrimaryKey: models.ColumnID, AutoID: true},
	models.TableSharedRecipeEvents: {Name: models.TableSharedRecipeEvents, PrimaryKey: models.ColumnID, AutoID: true},
}

// LookupTable returns the table definition or ErrUnknownTable.
func LookupTable(name string) (Table, error) {
	t, ok := Tables[name]
	if !ok {
		return Table{}, ErrUnknownTable
	}
	return t, nil
}

// RowStore persists schemaless rows grouped by table.
type RowStore interface {
	// SelectRows returns the rows of table matching q, in insertion order,
	// with q.Embeds joined in.
	SelectRows(ctx context.Context, table string, q remote.Query) ([]remote.Row, error)

	// InsertRows stores rows atomically. Missing auto keys are assigned and
	// written back into the rows.
	InsertRows(ctx context.Context, table string, rows []remote.Row) error

	// UpdateRows merges patch into every row whose field equals value and
	// returns the number of rows changed.
	UpdateRows(ctx context.Context, table string, patch remote.Row, field string, value any) (int64, error)
}

// Object is a stored binary payload.
type Object struct {
	Bucket   string
	Path     string
	MIMEType string
	Data     []byte
}

// ObjectStore persists binary objects addressed by bucket and path.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, path string) (*Object, error)
	PutObject(ctx context.Context, obj *Object) error
}

// UserStore persists accounts and revoked session tokens.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Store is everything the backend persists.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	RowStore
	ObjectStore
	UserStore

	// Close releases any resources held by the store.
	Close() error
}
