package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/mealsync/internal/models"
)

// Gateway wraps a Backend with failure classification and logging.
// It never caches: two identical calls are two round trips.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
}

// NewGateway creates a gateway over backend. A nil logger uses slog.Default().
func NewGateway(backend Backend, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{backend: backend, logger: logger}
}

// Fetch selects rows of table narrowed by q.
func (g *Gateway) Fetch(ctx context.Context, table string, q Query) ([]Row, error) {
	if q.IDs != nil && q.IDField == "" {
		q.IDField = DefaultIDField
	}
	op := "select " + table
	start := time.Now()

	rows, err := g.backend.Select(ctx, table, q)
	if err != nil {
		return nil, g.fail(op, start, err)
	}

	g.logger.Debug("Fetch ok",
		"table", table,
		"filter", q.Filter,
		"ids", len(q.IDs),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rows, nil
}

// Insert writes one record to table.
func (g *Gateway) Insert(ctx context.Context, table string, record Row) error {
	op := "insert " + table
	start := time.Now()
	if err := g.backend.Insert(ctx, table, []Row{record}); err != nil {
		return g.fail(op, start, err)
	}
	g.logger.Debug("Insert ok", "table", table, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Update applies patch to the rows of table where idField equals idValue.
func (g *Gateway) Update(ctx context.Context, table, idField, idValue string, patch Row) error {
	op := "update " + table
	start := time.Now()
	if err := g.backend.Update(ctx, table, patch, idField, idValue); err != nil {
		return g.fail(op, start, err)
	}
	g.logger.Debug("Update ok",
		"table", table,
		idField, idValue,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Download fetches an object from bucket.
func (g *Gateway) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	op := "download " + bucket + "/" + path
	start := time.Now()
	data, err := g.backend.Download(ctx, bucket, path)
	if err != nil {
		return nil, g.fail(op, start, err)
	}
	g.logger.Debug("Download ok", "bucket", bucket, "path", path, "bytes", len(data))
	return data, nil
}

// Upload stores an object in bucket, replacing any existing one.
func (g *Gateway) Upload(ctx context.Context, bucket, path string, data []byte, mimeType string) error {
	op := "upload " + bucket + "/" + path
	start := time.Now()
	if err := g.backend.Upload(ctx, bucket, path, data, mimeType); err != nil {
		return g.fail(op, start, err)
	}
	return nil
}

// SignIn authenticates with email and password.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	start := time.Now()
	sess, err := g.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, g.fail("sign in", start, err)
	}
	return sess, nil
}

// SignUp registers a new account.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	start := time.Now()
	user, err := g.backend.SignUp(ctx, email, password)
	if err != nil {
		return nil, g.fail("sign up", start, err)
	}
	return user, nil
}

// SignOut ends the remote session.
func (g *Gateway) SignOut(ctx context.Context) error {
	start := time.Now()
	if err := g.backend.SignOut(ctx); err != nil {
		return g.fail("sign out", start, err)
	}
	return nil
}

// GetUser returns the user of the live remote session.
func (g *Gateway) GetUser(ctx context.Context) (*models.User, error) {
	start := time.Now()
	user, err := g.backend.GetUser(ctx)
	if err != nil {
		return nil, g.fail("get user", start, err)
	}
	if user == nil {
		return nil, NewError(ErrAuth, "get user", "no live session")
	}
	return user, nil
}

func (g *Gateway) fail(op string, start time.Time, err error) error {
	err = Classify(op, err)
	g.logger.Warn("Remote call failed",
		"op", op,
		"error", err,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

// FetchAs fetches rows and decodes them into T.
func FetchAs[T any](ctx context.Context, g *Gateway, table string, q Query) ([]T, error) {
	rows, err := g.Fetch(ctx, table, q)
	if err != nil {
		return nil, err
	}
	return Decode[T](rows)
}

// Decode converts rows into values of T through their JSON representation.
func Decode[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to encode row: %w", err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode converts v into a Row through its JSON representation.
func Encode(v any) (Row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return row, nil
}
