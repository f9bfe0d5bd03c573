package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCache(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geocode_cache.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validCache = `{
  "paris": {"lat": 48.8566, "lon": 2.3522, "display_name": "Paris"},
  "lima": {"lat": -12.0464, "lon": -77.0428}
}`

func TestRun_ValidCache(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), &out, writeCache(t, validCache), "", false)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Key normalization")
	assert.Contains(t, out.String(), "Entries: 2")
	assert.NotContains(t, out.String(), "FAIL")
}

func TestRun_InvalidCache(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), &out, writeCache(t, `{
		"Paris ": {"lat": 48.8566, "lon": 2.3522},
		"nowhere": {"lat": 123, "lon": -200}
	}`), "", false)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), `key "Paris " is not normalized (want "paris")`)
	assert.Contains(t, out.String(), `"nowhere": latitude 123 out of range`)
	assert.Contains(t, out.String(), `"nowhere": longitude -200 out of range`)
}

func TestRun_CorruptCacheIsFatal(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), &out, writeCache(t, `{oops`), "", false)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL")
}

func TestRun_SyncThenParity(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	cachePath := writeCache(t, validCache)

	var out bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), &out, cachePath, dbPath, false), "empty SQLite cache lacks every key")
	assert.Contains(t, out.String(), `"paris": missing from SQLite cache`)

	out.Reset()
	assert.Equal(t, 0, run(context.Background(), &out, cachePath, dbPath, true))
	assert.Contains(t, out.String(), "Synced 2 entries")
	assert.Contains(t, out.String(), "JSON/SQLite parity")
}

func TestValidateParity(t *testing.T) {
	file := map[string]domain.LocationRecord{"a": {Lat: 1, Lon: 1}, "b": {Lat: 2, Lon: 2}}
	sqlite := map[string]domain.LocationRecord{"a": {Lat: 1, Lon: 9}, "c": {Lat: 3, Lon: 3}}

	p := validateParity(file, sqlite)
	require.Len(t, p.errors, 3)
	assert.Contains(t, p.errors[0], `"a": JSON`)
	assert.Equal(t, `"b": missing from SQLite cache`, p.errors[1])
	assert.Equal(t, `"c": only in SQLite cache`, p.errors[2])
}
