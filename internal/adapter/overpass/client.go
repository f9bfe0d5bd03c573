// Package overpass looks up nearby points of interest through the Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/place-planner/internal/domain"
)

const (
	DefaultURL    = "https://overpass-api.de/api/interpreter"
	DefaultRadius = 5000
	DefaultLimit  = 5

	tourismPattern = "attraction|museum|viewpoint|zoo|theme_park|gallery"
	leisurePattern = "park|garden"

	// maxElements caps what Overpass returns before local dedupe and truncation.
	maxElements = 50
)

// Client queries Overpass for tourist, historic and leisure features.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	radius     int
	limit      int
	logger     *slog.Logger
}

// NewClient creates an Overpass client. Non-positive radius or limit fall
// back to DefaultRadius and DefaultLimit.
func NewClient(baseURL, userAgent string, timeout time.Duration, radius, limit int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: userAgent,
		radius:    radius,
		limit:     limit,
		logger:    logger.With("component", "overpass"),
	}
}

// Fetch returns up to the configured limit of named places around the
// coordinates, deduplicated by name, in the order Overpass reported them.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) ([]domain.PlaceInfo, error) {
	form := url.Values{"data": {buildQuery(lat, lon, c.radius)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept-Language", "en")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("overpass API error: status %d: %s", resp.StatusCode, body)
	}

	var or overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	places := collect(or.Elements, c.limit)
	c.logger.Debug("places fetched", "lat", lat, "lon", lon, "elements", len(or.Elements), "places", len(places))
	return places, nil
}

func buildQuery(lat, lon float64, radius int) string {
	around := fmt.Sprintf("(around:%d,%s,%s)", radius,
		strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lon, 'f', -1, 64))

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, el := range []string{"node", "way", "relation"} {
		fmt.Fprintf(&b, "  %s%s[\"tourism\"~\"%s\"];\n", el, around, tourismPattern)
	}
	for _, el := range []string{"node", "way", "relation"} {
		fmt.Fprintf(&b, "  %s%s[\"historic\"];\n", el, around)
	}
	for _, el := range []string{"node", "way"} {
		fmt.Fprintf(&b, "  %s%s[\"leisure\"~\"%s\"];\n", el, around, leisurePattern)
	}
	fmt.Fprintf(&b, ");\nout center %d;\n", maxElements)
	return b.String()
}

func collect(elements []element, limit int) []domain.PlaceInfo {
	places := make([]domain.PlaceInfo, 0, limit)
	seen := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		name := el.Tags["name"]
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		p := domain.PlaceInfo{Name: name, Category: el.category(), Lat: el.Lat, Lon: el.Lon}
		if el.Center != nil {
			if p.Lat == nil {
				p.Lat = el.Center.Lat
			}
			if p.Lon == nil {
				p.Lon = el.Center.Lon
			}
		}
		places = append(places, p)
		if len(places) >= limit {
			break
		}
	}
	return places
}

// Overpass API response types.

type overpassResponse struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *center           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type center struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (e element) category() string {
	for _, key := range []string{"tourism", "historic", "leisure"} {
		if v := e.Tags[key]; v != "" {
			return v
		}
	}
	return ""
}
