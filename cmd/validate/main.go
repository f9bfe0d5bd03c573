// Command validate checks a geocode cache for integrity: every key is a
// normalized place name and every record holds coordinates in range. With
// -sqlite it also compares the JSON cache against a SQLite cache, and with
// -sync it first copies the JSON entries into that SQLite cache.
//
// Usage:
//
//	go run ./cmd/validate -cache geocode_cache.json
//	go run ./cmd/validate -cache geocode_cache.json -sqlite geocode_cache.db -sync
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/couchcryptid/place-planner/internal/adapter/filecache"
	"github.com/couchcryptid/place-planner/internal/adapter/sqlcache"
	"github.com/couchcryptid/place-planner/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cachePath := flag.String("cache", "geocode_cache.json", "path to the JSON geocode cache")
	sqlitePath := flag.String("sqlite", "", "optional SQLite geocode cache to compare against")
	sync := flag.Bool("sync", false, "copy JSON cache entries into the SQLite cache before comparing")
	flag.Parse()

	if *sync && *sqlitePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(context.Background(), os.Stdout, *cachePath, *sqlitePath, *sync); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, out io.Writer, cachePath, sqlitePath string, sync bool) int {
	fmt.Fprintln(out, "=== Geocode Cache Validation ===")
	fmt.Fprintln(out)

	entries, err := filecache.NewStore(cachePath).Load(ctx)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load %s: %v\n", cachePath, err)
		return 1
	}

	phases := []*phase{
		validateKeys(entries),
		validateCoordinates(entries),
	}

	if sqlitePath != "" {
		store, err := sqlcache.Open(ctx, sqlitePath)
		if err != nil {
			fmt.Fprintf(out, "FATAL: open %s: %v\n", sqlitePath, err)
			return 1
		}
		defer store.Close()

		if sync {
			if err := store.Save(ctx, entries); err != nil {
				fmt.Fprintf(out, "FATAL: sync into %s: %v\n", sqlitePath, err)
				return 1
			}
			fmt.Fprintf(out, "Synced %d entries into %s\n\n", len(entries), sqlitePath)
		}

		other, err := store.Load(ctx)
		if err != nil {
			fmt.Fprintf(out, "FATAL: load %s: %v\n", sqlitePath, err)
			return 1
		}
		phases = append(phases, validateParity(entries, other))
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Entries: %d\n", len(entries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func sortedKeys(entries map[string]domain.LocationRecord) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateKeys(entries map[string]domain.LocationRecord) *phase {
	p := &phase{name: "Key normalization"}
	for _, k := range sortedKeys(entries) {
		if k == "" {
			p.errorf("empty key")
			continue
		}
		if norm := domain.NormalizePlaceKey(k); norm != k {
			p.errorf("key %q is not normalized (want %q)", k, norm)
		}
	}
	return p
}

func validateCoordinates(entries map[string]domain.LocationRecord) *phase {
	p := &phase{name: "Coordinate ranges"}
	for _, k := range sortedKeys(entries) {
		rec := entries[k]
		if math.IsNaN(rec.Lat) || rec.Lat < -90 || rec.Lat > 90 {
			p.errorf("%q: latitude %v out of range", k, rec.Lat)
		}
		if math.IsNaN(rec.Lon) || rec.Lon < -180 || rec.Lon > 180 {
			p.errorf("%q: longitude %v out of range", k, rec.Lon)
		}
	}
	return p
}

func validateParity(file, sqlite map[string]domain.LocationRecord) *phase {
	p := &phase{name: "JSON/SQLite parity"}
	for _, k := range sortedKeys(file) {
		got, ok := sqlite[k]
		if !ok {
			p.errorf("%q: missing from SQLite cache", k)
			continue
		}
		if got != file[k] {
			p.errorf("%q: JSON %+v != SQLite %+v", k, file[k], got)
		}
	}
	for _, k := range sortedKeys(sqlite) {
		if _, ok := file[k]; !ok {
			p.errorf("%q: only in SQLite cache", k)
		}
	}
	return p
}
