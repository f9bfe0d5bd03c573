// Package filecache persists the geocode cache as one human-editable JSON
// object on disk: {"paris": {"lat": 48.85, "lon": 2.35, "display_name": "..."}}.
package filecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/place-planner/internal/domain"
)

// Store implements domain.CacheStore on a single JSON file.
type Store struct {
	path string
}

// NewStore creates a file-backed cache store. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole mapping. A missing file is an empty cache; an
// unreadable or corrupt file yields an empty mapping and the error.
func (s *Store) Load(_ context.Context) (map[string]domain.LocationRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]domain.LocationRecord{}, nil
		}
		return map[string]domain.LocationRecord{}, fmt.Errorf("read geocode cache %q: %w", s.path, err)
	}

	entries := map[string]domain.LocationRecord{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return map[string]domain.LocationRecord{}, fmt.Errorf("decode geocode cache %q: %w", s.path, err)
	}
	if entries == nil {
		// A file containing JSON null decodes to a nil map.
		entries = map[string]domain.LocationRecord{}
	}
	return entries, nil
}

// Save overwrites the file with the given mapping. The data is written to a
// temporary file in the same directory and renamed into place so readers
// never see a partial file.
func (s *Store) Save(_ context.Context, entries map[string]domain.LocationRecord) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geocode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create geocode cache dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp geocode cache: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp geocode cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp geocode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp geocode cache: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace geocode cache %q: %w", s.path, err)
	}
	return nil
}
