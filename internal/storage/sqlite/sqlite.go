// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// jsonField returns the json_extract expression for a validated field name.
func jsonField(field string) (string, error) {
	if !fieldName.MatchString(field) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidField, field)
	}
	return "json_extract(data, '$." + field + "')", nil
}

// sqlValue converts a decoded JSON value into a comparable SQL argument.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case string, float64, float32, int, int32, int64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("unsupported filter value of type %T", v)
	}
}

// SelectRows retrieves the rows of a table matching the query.
func (s *SQLiteStore) SelectRows(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	if _, err := storage.LookupTable(table); err != nil {
		return nil, fmt.Errorf("%w: %s", err, table)
	}
	if q.IDs != nil && len(q.IDs) == 0 {
		return []remote.Row{}, nil
	}

	var sb strings.Builder
	sb.WriteString("SELECT data FROM rows WHERE table_name = ?")
	args := []any{table}

	// Sorted so identical queries produce identical SQL
	for _, field := range slices.Sorted(maps.Keys(q.Filter)) {
		expr, err := jsonField(field)
		if err != nil {
			return nil, err
		}
		value := q.Filter[field]
		if value == nil {
			sb.WriteString(" AND " + expr + " IS NULL")
			continue
		}
		arg, err := sqlValue(value)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" AND " + expr + " = ?")
		args = append(args, arg)
	}

	if q.IDs != nil {
		idField := q.IDField
		if idField == "" {
			idField = remote.DefaultIDField
		}
		expr, err := jsonField(idField)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" AND CAST(" + expr + " AS TEXT) IN (?" + repeatPlaceholder(len(q.IDs)-1) + ")")
		for _, id := range q.IDs {
			args = append(args, id)
		}
	}
	sb.WriteString(" ORDER BY seq")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select rows: %w", err)
	}
	defer rows.Close()

	result := []remote.Row{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var row remote.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	for _, e := range q.Embeds {
		if err := s.embed(ctx, result, e); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// embed joins related rows into parents with one extra query per embed.
func (s *SQLiteStore) embed(ctx context.Context, parents []remote.Row, e remote.Embed) error {
	if !fieldName.MatchString(e.LocalField) {
		return fmt.Errorf("%w: %q", storage.ErrInvalidField, e.LocalField)
	}
	keys := []string{}
	seen := make(map[string]bool)
	for _, p := range parents {
		v, ok := p[e.LocalField]
		if !ok || v == nil {
			continue
		}
		key := remote.ValueKey(v)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	related, err := s.SelectRows(ctx, e.Table, remote.Query{IDField: e.ForeignField, IDs: keys})
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", e.Table, err)
	}
	for _, p := range parents {
		e.Join(p, related)
	}
	return nil
}

// InsertRows persists new rows in one transaction.
func (s *SQLiteStore) InsertRows(ctx context.Context, table string, rows []remote.Row) error {
	t, err := storage.LookupTable(table)
	if err != nil {
		return fmt.Errorf("%w: %s", err, table)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		key, hasKey := row[t.PrimaryKey]
		if hasKey && key != nil && key != "" {
			if err := insertKeyed(ctx, tx, t, remote.ValueKey(key), row); err != nil {
				return err
			}
			continue
		}
		if !t.AutoID {
			return fmt.Errorf("%w: %s.%s", storage.ErrMissingKey, table, t.PrimaryKey)
		}
		if err := insertAuto(ctx, tx, t, row); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertKeyed(ctx context.Context, tx *sql.Tx, t storage.Table, key string, row remote.Row) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rows WHERE table_name = ? AND row_key = ?",
		t.Name, key,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check key: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s.%s = %s", storage.ErrDuplicateKey, t.Name, t.PrimaryKey, key)
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO rows (table_name, row_key, data) VALUES (?, ?, ?)",
		t.Name, key, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

// insertAuto stores a row without a key, then assigns the row sequence as key.
func insertAuto(ctx context.Context, tx *sql.Tx, t storage.Table, row remote.Row) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO rows (table_name, row_key, data) VALUES (?, ?, ?)",
		t.Name, "pending:"+uuid.New().String(), "{}",
	)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read row id: %w", err)
	}

	row[t.PrimaryKey] = seq
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE rows SET row_key = ?, data = ? WHERE seq = ?",
		remote.ValueKey(seq), string(data), seq,
	)
	if err != nil {
		return fmt.Errorf("failed to assign row id: %w", err)
	}
	return nil
}

// UpdateRows merges patch into every matching row.
func (s *SQLiteStore) UpdateRows(ctx context.Context, table string, patch remote.Row, field string, value any) (int64, error) {
	t, err := storage.LookupTable(table)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", err, table)
	}
	expr, err := jsonField(field)
	if err != nil {
		return 0, err
	}
	arg, err := sqlValue(value)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	type match struct {
		seq int64
		row remote.Row
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT seq, data FROM rows WHERE table_name = ? AND "+expr+" = ?",
		table, arg,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to select rows: %w", err)
	}
	var matches []match
	for rows.Next() {
		var m match
		var data string
		if err := rows.Scan(&m.seq, &data); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &m.row); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to decode row: %w", err)
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate rows: %w", err)
	}

	for _, m := range matches {
		maps.Copy(m.row, patch)
		data, err := json.Marshal(m.row)
		if err != nil {
			return 0, fmt.Errorf("failed to encode row: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE rows SET row_key = ?, data = ? WHERE seq = ?",
			remote.ValueKey(m.row[t.PrimaryKey]), string(data), m.seq,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int64(len(matches)), nil
}

// repeatPlaceholder returns a string of ", ?" repeated n times.
// Used for building IN clauses with multiple placeholders.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(", ?", n)
}
