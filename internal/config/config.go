package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Cache backends accepted by GEOCODE_CACHE_BACKEND.
const (
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	UserAgent       string

	// Geocode cache.
	CacheBackend  string
	CachePath     string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisCacheKey string

	// Geocoding providers.
	NominatimURL          string
	NominatimRPS          float64
	LocationIQKey         string
	LocationIQURL         string
	GeocodeTimeout        time.Duration
	GeocodeMaxRetries     int
	GeocodeInitialBackoff time.Duration

	// Enrichment providers.
	WeatherURL     string
	WeatherTimeout time.Duration
	OverpassURL    string
	PlacesTimeout  time.Duration
	PlacesRadius   int
	PlacesLimit    int

	// Plan audit events.
	KafkaEnabled        bool
	KafkaBrokers        []string
	KafkaPlanTopic      string
	KafkaPublishTimeout time.Duration
}

// SecondaryEnabled reports whether the LocationIQ fallback is configured.
func (c *Config) SecondaryEnabled() bool {
	return c.LocationIQKey != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		UserAgent:       sharedcfg.EnvOrDefault("USER_AGENT", "place-planner/1.0"),

		CacheBackend:  sharedcfg.EnvOrDefault("GEOCODE_CACHE_BACKEND", CacheBackendFile),
		CachePath:     sharedcfg.EnvOrDefault("GEOCODE_CACHE_PATH", "geocode_cache.json"),
		SQLitePath:    sharedcfg.EnvOrDefault("GEOCODE_SQLITE_PATH", "geocode_cache.db"),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.nonNegativeInt("REDIS_DB", 0),
		RedisCacheKey: sharedcfg.EnvOrDefault("REDIS_CACHE_KEY", "planner:geocode"),

		NominatimURL:          sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		NominatimRPS:          p.nonNegativeFloat("NOMINATIM_RPS", 1),
		LocationIQKey:         os.Getenv("LOCATIONIQ_KEY"),
		LocationIQURL:         sharedcfg.EnvOrDefault("LOCATIONIQ_URL", "https://us1.locationiq.com/v1/search.php"),
		GeocodeTimeout:        p.positiveDuration("GEOCODE_TIMEOUT", 20*time.Second),
		GeocodeMaxRetries:     p.positiveInt("GEOCODE_MAX_RETRIES", 3),
		GeocodeInitialBackoff: p.positiveDuration("GEOCODE_INITIAL_BACKOFF", time.Second),

		WeatherURL:     sharedcfg.EnvOrDefault("WEATHER_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherTimeout: p.positiveDuration("WEATHER_TIMEOUT", 15*time.Second),
		OverpassURL:    sharedcfg.EnvOrDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		PlacesTimeout:  p.positiveDuration("PLACES_TIMEOUT", 30*time.Second),
		PlacesRadius:   p.positiveInt("PLACES_RADIUS", 5000),
		PlacesLimit:    p.positiveInt("PLACES_LIMIT", 5),

		KafkaEnabled:        p.boolean("KAFKA_ENABLED", false),
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaPlanTopic:      sharedcfg.EnvOrDefault("KAFKA_PLAN_TOPIC", "plan-events"),
		KafkaPublishTimeout: p.positiveDuration("KAFKA_PUBLISH_TIMEOUT", 2*time.Second),
	}
	if p.err != nil {
		return nil, p.err
	}

	switch cfg.CacheBackend {
	case CacheBackendFile, CacheBackendRedis, CacheBackendSQLite:
	default:
		return nil, fmt.Errorf("invalid GEOCODE_CACHE_BACKEND %q: want file, redis or sqlite", cfg.CacheBackend)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaPlanTopic == "" {
			return nil, errors.New("KAFKA_PLAN_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// parser keeps the first parse error so Load can build the config in one pass.
type parser struct {
	err error
}

func (p *parser) fail(name, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q", name, value)
	}
}

func (p *parser) positiveDuration(name string, def time.Duration) time.Duration {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(name, s)
		return def
	}
	return d
}

func (p *parser) positiveInt(name string, def int) int {
	n := p.nonNegativeInt(name, def)
	if n == 0 {
		p.fail(name, os.Getenv(name))
		return def
	}
	return n
}

func (p *parser) nonNegativeInt(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		p.fail(name, s)
		return def
	}
	return n
}

func (p *parser) nonNegativeFloat(name string, def float64) float64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		p.fail(name, s)
		return def
	}
	return f
}

func (p *parser) boolean(name string, def bool) bool {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(name, s)
		return def
	}
	return b
}
