package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/mealsync/internal/storage"
)

// GetObject retrieves an object by bucket and path.
func (s *SQLiteStore) GetObject(ctx context.Context, bucket, path string) (*storage.Object, error) {
	obj := &storage.Object{Bucket: bucket, Path: path}
	err := s.db.QueryRowContext(ctx,
		"SELECT mime_type, data FROM objects WHERE bucket = ? AND path = ?",
		bucket, path,
	).Scan(&obj.MIMEType, &obj.Data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: object %s/%s", storage.ErrNotFound, bucket, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// PutObject stores an object, replacing any previous one at the same path.
func (s *SQLiteStore) PutObject(ctx context.Context, obj *storage.Object) error {
	data := obj.Data
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO objects (bucket, path, mime_type, data, created_at) VALUES (?, ?, ?, ?, ?)",
		obj.Bucket, obj.Path, obj.MIMEType, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}
