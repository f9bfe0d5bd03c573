// Package sqlcache keeps the geocode cache in a SQLite table.
package sqlcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/place-planner/internal/domain"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
    place_key    TEXT PRIMARY KEY,
    lat          REAL NOT NULL,
    lon          REAL NOT NULL,
    display_name TEXT NOT NULL DEFAULT ''
);`

// Store implements domain.CacheStore on a SQLite table. Place keys are
// expected to be normalized by the caller.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	// SQLite allows a single writer; one connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify sqlite connection to %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init geocode cache schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Load selects every cached record.
func (s *Store) Load(ctx context.Context) (map[string]domain.LocationRecord, error) {
	if s.DB == nil {
		return map[string]domain.LocationRecord{}, errors.New("geocode cache: db is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT place_key, lat, lon, display_name FROM geocode_cache;`)
	if err != nil {
		return map[string]domain.LocationRecord{}, fmt.Errorf("load geocode cache: query: %w", err)
	}
	defer rows.Close()

	out := map[string]domain.LocationRecord{}
	for rows.Next() {
		var key string
		var rec domain.LocationRecord
		if err := rows.Scan(&key, &rec.Lat, &rec.Lon, &rec.DisplayName); err != nil {
			return map[string]domain.LocationRecord{}, fmt.Errorf("load geocode cache: scan rows: %w", err)
		}
		out[key] = rec
	}
	if err := rows.Err(); err != nil {
		return map[string]domain.LocationRecord{}, fmt.Errorf("load geocode cache: row iteration: %w", err)
	}
	return out, nil
}

// Save upserts every entry in one transaction.
func (s *Store) Save(ctx context.Context, entries map[string]domain.LocationRecord) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save geocode cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO geocode_cache (place_key, lat, lon, display_name)
	VALUES (?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("save geocode cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for key, rec := range entries {
		if strings.TrimSpace(key) == "" {
			return errors.New("save geocode cache: empty place key")
		}
		if _, err := stmt.ExecContext(ctx, key, rec.Lat, rec.Lon, rec.DisplayName); err != nil {
			return fmt.Errorf("save geocode cache key=%q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save geocode cache: commit: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}
