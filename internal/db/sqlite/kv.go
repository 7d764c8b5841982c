package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kailas-cloud/incidex/internal/db"
)

// GetValue retrieves a value by key. Expired keys are reported as missing.
func (s *Store) GetValue(ctx context.Context, key string) ([]byte, error) {
	var (
		value   []byte
		expires sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM __kv WHERE key = ?`, key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	if expires.Valid && expires.Int64 <= s.now().UnixMilli() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM __kv WHERE key = ? AND expires_at = ?`, key, expires.Int64)
		return nil, db.ErrKeyNotFound
	}
	return value, nil
}

// SetValue stores a value at the given key without expiry.
func (s *Store) SetValue(ctx context.Context, key string, value []byte) error {
	return s.set(ctx, key, value, nil)
}

// SetValueWithTTL stores a value with an expiration.
func (s *Store) SetValueWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	exp := s.now().Add(ttl).UnixMilli()
	return s.set(ctx, key, value, exp)
}

func (s *Store) set(ctx context.Context, key string, value []byte, expires any) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO __kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expires)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// DeleteValue removes a key. Missing keys are not an error.
func (s *Store) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM __kv WHERE key = ?`, key); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
