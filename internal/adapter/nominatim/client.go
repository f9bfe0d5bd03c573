// Package nominatim searches OpenStreetMap Nominatim, or the LocationIQ
// service that mirrors its API, for a free-text place query.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/couchcryptid/place-planner/internal/observability"
	"golang.org/x/time/rate"
)

const (
	DefaultNominatimURL  = "https://nominatim.openstreetmap.org/search"
	DefaultLocationIQURL = "https://us1.locationiq.com/v1/search.php"
	DefaultUserAgent     = "place-planner/1.0"

	providerNominatim  = "nominatim"
	providerLocationIQ = "locationiq"

	maxErrorBody = 512
)

// Client implements domain.GeocodeProvider. It performs exactly one HTTP
// call per Search and leaves retries and caching to the resolver.
type Client struct {
	name       string
	key        string
	userAgent  string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit paces outbound requests to rps requests per second.
// A non-positive value disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Nominatim search client.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return newClient(providerNominatim, baseURL, "", userAgent, timeout, metrics, logger, opts)
}

// NewLocationIQClient creates a client for the LocationIQ search API,
// which takes the same parameters as Nominatim plus an API key.
func NewLocationIQClient(baseURL, key, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultLocationIQURL
	}
	return newClient(providerLocationIQ, baseURL, key, userAgent, timeout, metrics, logger, opts)
}

func newClient(name, baseURL, key, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts []Option) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	c := &Client{
		name:      name,
		key:       key,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger.With("component", name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name used in logs, metrics and errors.
func (c *Client) Name() string {
	return c.name
}

// Search returns at most one candidate for query. An empty slice with a nil
// error means the provider has no match.
func (c *Client) Search(ctx context.Context, query string) ([]domain.GeocodeCandidate, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.upstreamErr(domain.ClassConnectivity, 0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	if c.key != "" {
		params.Set("key", c.key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, c.upstreamErr(domain.ClassHard, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(c.name, "error").Inc()
		return nil, c.upstreamErr(domain.ClassConnectivity, 0, fmt.Errorf("search request: %w", err))
	}
	defer resp.Body.Close()

	// LocationIQ answers 404 when nothing matches; Nominatim answers 200 with [].
	if resp.StatusCode == http.StatusNotFound && c.name == providerLocationIQ {
		c.metrics.GeocodeRequests.WithLabelValues(c.name, "empty").Inc()
		return []domain.GeocodeCandidate{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(c.name, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		class := domain.ClassHard
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			class = domain.ClassRateLimited
		}
		return nil, c.upstreamErr(class, resp.StatusCode, fmt.Errorf("unexpected response: %s", body))
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(c.name, "error").Inc()
		return nil, c.upstreamErr(domain.ClassHard, 0, fmt.Errorf("decode response: %w", err))
	}

	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(c.name, "empty").Inc()
		return []domain.GeocodeCandidate{}, nil
	}

	candidate, err := places[0].candidate()
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(c.name, "error").Inc()
		return nil, c.upstreamErr(domain.ClassHard, 0, err)
	}

	c.metrics.GeocodeRequests.WithLabelValues(c.name, "success").Inc()
	c.logger.Debug("geocode search matched", "query", query, "display_name", candidate.DisplayName)
	return []domain.GeocodeCandidate{candidate}, nil
}

func (c *Client) upstreamErr(class domain.ErrorClass, status int, err error) error {
	var netErr net.Error
	if class == domain.ClassHard && (errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())) {
		class = domain.ClassConnectivity
	}
	return &domain.UpstreamError{Provider: c.name, Class: class, StatusCode: status, Err: err}
}

// Nominatim API response types. Coordinates arrive as decimal strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p place) candidate() (domain.GeocodeCandidate, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodeCandidate{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodeCandidate{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return domain.GeocodeCandidate{Lat: lat, Lon: lon, DisplayName: p.DisplayName}, nil
}
