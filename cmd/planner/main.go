package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/place-planner/internal/adapter/filecache"
	httpadapter "github.com/couchcryptid/place-planner/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/place-planner/internal/adapter/kafka"
	"github.com/couchcryptid/place-planner/internal/adapter/nominatim"
	"github.com/couchcryptid/place-planner/internal/adapter/openmeteo"
	"github.com/couchcryptid/place-planner/internal/adapter/overpass"
	"github.com/couchcryptid/place-planner/internal/adapter/rediscache"
	"github.com/couchcryptid/place-planner/internal/adapter/sqlcache"
	"github.com/couchcryptid/place-planner/internal/config"
	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/couchcryptid/place-planner/internal/enrich"
	"github.com/couchcryptid/place-planner/internal/geocode"
	"github.com/couchcryptid/place-planner/internal/observability"
	"github.com/couchcryptid/place-planner/internal/planner"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openCacheStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open geocode cache", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}

	primary := nominatim.NewClient(cfg.NominatimURL, cfg.UserAgent, cfg.GeocodeTimeout, metrics, logger,
		nominatim.WithRateLimit(cfg.NominatimRPS))
	var secondary domain.GeocodeProvider
	if cfg.SecondaryEnabled() {
		secondary = nominatim.NewLocationIQClient(cfg.LocationIQURL, cfg.LocationIQKey, cfg.UserAgent, cfg.GeocodeTimeout, metrics, logger)
		logger.Info("secondary geocoding provider enabled", "provider", secondary.Name())
	}
	resolver := geocode.NewResolver(store, primary, secondary, logger.With("component", "geocode"), metrics,
		geocode.WithMaxRetries(cfg.GeocodeMaxRetries),
		geocode.WithInitialBackoff(cfg.GeocodeInitialBackoff))

	weather := openmeteo.NewClient(cfg.WeatherURL, cfg.WeatherTimeout, logger)
	places := overpass.NewClient(cfg.OverpassURL, cfg.UserAgent, cfg.PlacesTimeout, cfg.PlacesRadius, cfg.PlacesLimit, logger)
	coordinator := enrich.NewCoordinator(map[domain.TaskKind]enrich.TaskFunc{
		domain.TaskWeather: func(ctx context.Context, c domain.Coords) (any, error) {
			return weather.Fetch(ctx, c.Lat, c.Lon)
		},
		domain.TaskPlaces: func(ctx context.Context, c domain.Coords) (any, error) {
			return places.Fetch(ctx, c.Lat, c.Lon)
		},
	}, logger.With("component", "enrich"), metrics)

	opts := []planner.Option{planner.WithCacheStore(store)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, planner.WithPublisher(writer), planner.WithPublishTimeout(cfg.KafkaPublishTimeout))
		logger.Info("plan events enabled", "topic", cfg.KafkaPlanTopic, "brokers", cfg.KafkaBrokers)
	}
	svc := planner.New(resolver, coordinator, logger.With("component", "planner"), metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := closeStore(); err != nil {
		logger.Error("geocode cache close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// openCacheStore builds the configured geocode cache backend and its close function.
func openCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.CacheStore, func() error, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := rediscache.NewStore(rdb, rediscache.WithKey(cfg.RedisCacheKey),
			rediscache.WithLogger(logger.With("component", "rediscache")))
		// An unreachable Redis degrades to uncached lookups.
		if err := store.Ping(ctx); err != nil {
			logger.Warn("redis geocode cache unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		logger.Info("geocode cache backend", "backend", cfg.CacheBackend, "addr", cfg.RedisAddr, "key", cfg.RedisCacheKey)
		return store, rdb.Close, nil

	case config.CacheBackendSQLite:
		store, err := sqlcache.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("geocode cache backend", "backend", cfg.CacheBackend, "path", cfg.SQLitePath)
		return store, store.Close, nil

	default:
		store := filecache.NewStore(cfg.CachePath)
		logger.Info("geocode cache backend", "backend", cfg.CacheBackend, "path", store.Path())
		return store, func() error { return nil }, nil
	}
}
