// Package cache is the best-effort key/value store for session tokens and
// short-lived client state.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/logger"
)

// Key prefixes
const (
	SessionPrefix    = "session:"
	AssessmentPrefix = "assessment:"
	DeletionPrefix   = "deletion:"
)

// Backend is the storage behind the cache
type Backend interface {
	Get(ctx context.Context, key string, now time.Time) (string, bool, error)
	Set(ctx context.Context, key, value string, expiresAt, now time.Time) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	DeleteValue(ctx context.Context, prefix, value string) (int64, error)
	ListPrefix(ctx context.Context, prefix string, now time.Time) (map[string]string, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store is a key/value cache with optional expiry
type Store struct {
	backend Backend
	clock   streak.Clock
	log     *zap.Logger
}

// New creates a cache over backend
func New(backend Backend, clock streak.Clock, log *zap.Logger) *Store {
	if clock == nil {
		clock = streak.SystemClock{}
	}
	return &Store{backend: backend, clock: clock, log: logger.OrNop(log)}
}

// Get returns the value under key. Errors are logged and read as a miss.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.backend.Get(ctx, key, s.clock.Now())
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

// Set stores value under key for ttl. A ttl of zero never expires.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.clock.Now()
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	if err := s.backend.Set(ctx, key, value, expires, now); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// GetJSON decodes the value under key into v
func (s *Store) GetJSON(ctx context.Context, key string, v interface{}) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Warn("cache entry is not valid JSON", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key
func (s *Store) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Clear removes every key under prefix
func (s *Store) Clear(ctx context.Context, prefix string) (int64, error) {
	return s.backend.DeletePrefix(ctx, prefix)
}

// ClearValue removes every key under prefix holding value
func (s *Store) ClearValue(ctx context.Context, prefix, value string) (int64, error) {
	return s.backend.DeleteValue(ctx, prefix, value)
}

// Scan returns the live entries under prefix, keyed without the prefix
func (s *Store) Scan(ctx context.Context, prefix string) (map[string]string, error) {
	entries, err := s.backend.ListPrefix(ctx, prefix, s.clock.Now())
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		out[strings.TrimPrefix(k, prefix)] = v
	}
	return out, nil
}

// Purge drops expired entries
func (s *Store) Purge(ctx context.Context) (int64, error) {
	return s.backend.PurgeExpired(ctx, s.clock.Now())
}
