// Package openmeteo fetches current conditions and the rain outlook from
// the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/place-planner/internal/domain"
)

// DefaultURL is the public Open-Meteo forecast endpoint.
const DefaultURL = "https://api.open-meteo.com/v1/forecast"

// forecastHours bounds the precipitation outlook to the next day.
const forecastHours = 24

// Client fetches a WeatherReport for a coordinate pair.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger.With("component", "openmeteo"),
	}
}

// Fetch returns the current temperature and the highest hourly precipitation
// probability over the next 24 hours. Either may be nil when the API omits it.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domain.WeatherReport, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":       {strconv.FormatFloat(lon, 'f', -1, 64)},
		"current_weather": {"true"},
		"hourly":          {"precipitation_probability"},
		"timezone":        {"UTC"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.WeatherReport{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return domain.WeatherReport{}, fmt.Errorf("decode response: %w", err)
	}

	report := domain.WeatherReport{
		PrecipitationProbabilityPercent: maxProbability(fr.Hourly.PrecipitationProbability),
		Raw:                             json.RawMessage(body),
	}
	if fr.CurrentWeather != nil {
		report.TemperatureC = fr.CurrentWeather.Temperature
	}

	c.logger.Debug("weather fetched", "lat", lat, "lon", lon)
	return report, nil
}

func maxProbability(hourly []*float64) *float64 {
	if len(hourly) > forecastHours {
		hourly = hourly[:forecastHours]
	}
	var best *float64
	for _, v := range hourly {
		if v == nil {
			continue
		}
		if best == nil || *v > *best {
			p := *v
			best = &p
		}
	}
	return best
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// Open-Meteo API response types.

type forecastResponse struct {
	CurrentWeather *currentWeather `json:"current_weather"`
	Hourly         hourly          `json:"hourly"`
}

type currentWeather struct {
	Temperature *float64 `json:"temperature"`
}

type hourly struct {
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
}
