// Package rediscache keeps the geocode cache in a single Redis hash, one
// field per place key holding the JSON-encoded record.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store implements domain.CacheStore on a Redis hash.
type Store struct {
	rdb    *redis.Client
	key    string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the hash key. Defaults to "planner:geocode".
func WithKey(key string) Option {
	return func(s *Store) {
		if k := strings.TrimSpace(key); k != "" {
			s.key = k
		}
	}
}

// WithLogger sets the logger used to report undecodable fields.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Redis-backed cache store.
func NewStore(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		key:    "planner:geocode",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads every field of the hash. A Redis failure yields an empty mapping
// and the error; fields that do not decode are skipped and logged.
func (s *Store) Load(ctx context.Context) (map[string]domain.LocationRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return map[string]domain.LocationRecord{}, fmt.Errorf("load geocode cache %q: %w", s.key, err)
	}

	entries := make(map[string]domain.LocationRecord, len(fields))
	for k, v := range fields {
		var rec domain.LocationRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.logger.Warn("skipping undecodable geocode cache field", "key", s.key, "field", k, "error", err)
			continue
		}
		entries[k] = rec
	}
	return entries, nil
}

// Save writes every entry into the hash. Existing fields are overwritten;
// fields absent from entries are left in place.
func (s *Store) Save(ctx context.Context, entries map[string]domain.LocationRecord) error {
	if len(entries) == 0 {
		return nil
	}

	values := make(map[string]any, len(entries))
	for k, rec := range entries {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode geocode cache field %q: %w", k, err)
		}
		values[k] = string(data)
	}

	if err := s.rdb.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("save geocode cache %q: %w", s.key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
