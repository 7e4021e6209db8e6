package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CacheRepository handles database operations for the key/value cache
type CacheRepository struct {
	db *sqlx.DB
}

// NewCacheRepository creates a new repository instance
func NewCacheRepository(db *sqlx.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

type cacheRow struct {
	Value     string       `db:"value"`
	ExpiresAt sql.NullTime `db:"expires_at"`
}

// Get returns the value for key. Expired entries are reported as missing.
func (r *CacheRepository) Get(ctx context.Context, key string, now time.Time) (string, bool, error) {
	var row cacheRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind("SELECT value, expires_at FROM kv_cache WHERE cache_key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache key: %w", err)
	}
	if row.ExpiresAt.Valid && !row.ExpiresAt.Time.After(now) {
		return "", false, nil
	}
	return row.Value, true, nil
}

// Set stores value under key. A zero expiresAt never expires.
func (r *CacheRepository) Set(ctx context.Context, key, value string, expiresAt, now time.Time) error {
	var exp sql.NullTime
	if !expiresAt.IsZero() {
		exp = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}
	query := r.db.Rebind(`
		INSERT INTO kv_cache (cache_key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`)
	if _, err := r.db.ExecContext(ctx, query, key, value, exp, now.UTC()); err != nil {
		return fmt.Errorf("failed to write cache key: %w", err)
	}
	return nil
}

// Delete removes a key
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM kv_cache WHERE cache_key = ?"), key); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and returns how many went
func (r *CacheRepository) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM kv_cache WHERE substr(cache_key, 1, ?) = ?"), len(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache prefix: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteValue removes every key holding value under prefix
func (r *CacheRepository) DeleteValue(ctx context.Context, prefix, value string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind("DELETE FROM kv_cache WHERE substr(cache_key, 1, ?) = ? AND value = ?"),
		len(prefix), prefix, value)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache values: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type cacheEntry struct {
	Key   string `db:"cache_key"`
	Value string `db:"value"`
}

// ListPrefix returns the live entries whose key starts with prefix
func (r *CacheRepository) ListPrefix(ctx context.Context, prefix string, now time.Time) (map[string]string, error) {
	var rows []cacheEntry
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT cache_key, value FROM kv_cache
		WHERE substr(cache_key, 1, ?) = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY cache_key
	`), len(prefix), prefix, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list cache prefix: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// PurgeExpired removes entries whose expiry has passed
func (r *CacheRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM kv_cache WHERE expires_at IS NOT NULL AND expires_at <= ?"), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
