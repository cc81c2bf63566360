package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps session keys in the kv_store table.
type PostgresStore struct {
	pool    *pgxpool.Pool
	prefix  string
	onClose func()
}

// NewPostgresStore wraps pool. onClose, when set, runs on Close.
func NewPostgresStore(pool *pgxpool.Pool, prefix string, onClose func()) *PostgresStore {
	return &PostgresStore{pool: pool, prefix: prefix, onClose: onClose}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key=$1`, s.prefix+key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := s.pool.Exec(ctx, query, s.prefix+key, value)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.prefix + key
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = ANY($1)`, prefixed)
	return err
}

func (s *PostgresStore) Close() error {
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
