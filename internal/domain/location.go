package domain

import (
	"context"
	"strings"
)

// LocationRecord is a resolved place. It is immutable once produced and is
// stored in the geocode cache under the normalized place key.
type LocationRecord struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Coords returns the record's coordinate pair.
func (r LocationRecord) Coords() Coords {
	return Coords{Lat: r.Lat, Lon: r.Lon}
}

// Coords represents a WGS-84 latitude/longitude coordinate pair.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeocodeCandidate is one match returned by a geocoding provider search.
type GeocodeCandidate struct {
	Lat         float64
	Lon         float64
	DisplayName string
}

// Record converts the candidate into a cacheable LocationRecord.
func (c GeocodeCandidate) Record() LocationRecord {
	return LocationRecord{Lat: c.Lat, Lon: c.Lon, DisplayName: c.DisplayName}
}

// GeocodeProvider searches a geocoding service for a free-text query.
// An empty slice with a nil error means the provider found no match.
type GeocodeProvider interface {
	Name() string
	Search(ctx context.Context, query string) ([]GeocodeCandidate, error)
}

// CacheStore is the durable place-key to LocationRecord mapping.
//
// Load returns the whole mapping. A missing or unreadable store yields an
// empty mapping together with the error so callers can tell "no entries"
// apart from "store unavailable". Save overwrites the whole mapping.
type CacheStore interface {
	Load(ctx context.Context) (map[string]LocationRecord, error)
	Save(ctx context.Context, entries map[string]LocationRecord) error
}

// NormalizePlaceKey trims and lowercases a place query to form its cache key.
func NormalizePlaceKey(place string) string {
	return strings.ToLower(strings.TrimSpace(place))
}
