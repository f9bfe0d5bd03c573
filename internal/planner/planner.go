// Package planner answers plan requests: resolve the place, enrich the
// coordinates, and compose the summary.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/couchcryptid/place-planner/internal/observability"
	"github.com/google/uuid"
)

// Resolver maps a place name to a location.
type Resolver interface {
	Resolve(ctx context.Context, place string) (domain.LocationRecord, error)
}

// Enricher runs enrichment tasks for resolved coordinates.
type Enricher interface {
	Enrich(ctx context.Context, coords domain.Coords, kinds []domain.TaskKind) map[domain.TaskKind]domain.TaskResult
}

// EventPublisher receives one audit event per answered plan.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PlanEvent) error
}

// DefaultPublishTimeout bounds how long a plan waits on its audit event.
const DefaultPublishTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// Service implements the plan operation.
type Service struct {
	resolver  Resolver
	enricher  Enricher
	publisher EventPublisher
	timeout   time.Duration
	store     domain.CacheStore
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher emits a PlanEvent for every plan.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPublishTimeout bounds each Publish call. Non-positive values keep the
// default.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCacheStore lets CheckReadiness ping the geocode cache backend.
func WithCacheStore(store domain.CacheStore) Option {
	return func(s *Service) { s.store = store }
}

// New creates a plan Service.
func New(resolver Resolver, enricher Enricher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		enricher: enricher,
		timeout:  DefaultPublishTimeout,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan resolves place and runs the requested tasks. Failures are reported
// in the result, never as an error: resolution failures give ok=false,
// task failures stay in their raw slot.
func (s *Service) Plan(ctx context.Context, place string, tasks []string) domain.PlanResult {
	place = strings.TrimSpace(place)

	kinds, err := domain.ParseTaskKinds(tasks)
	if err != nil {
		s.metrics.Plans.WithLabelValues("invalid").Inc()
		result := domain.PlanResult{OK: false, Place: place, Error: err.Error()}
		s.publish(ctx, place, nil, result)
		return result
	}

	loc, err := s.resolver.Resolve(ctx, place)
	if err != nil {
		result := domain.PlanResult{OK: false, Place: place}
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.Plans.WithLabelValues("not_found").Inc()
			result.Error = fmt.Sprintf("I don't know this place exists: %s", place)
		} else {
			s.metrics.Plans.WithLabelValues("geocode_error").Inc()
			s.logger.Error("geocoding failed", "place", place, "error", err)
			result.Error = fmt.Sprintf("Geocoding service error: %v", err)
		}
		s.publish(ctx, place, kinds, result)
		return result
	}

	coords := loc.Coords()
	raw := s.enricher.Enrich(ctx, coords, kinds)

	s.metrics.Plans.WithLabelValues("ok").Inc()
	result := domain.PlanResult{
		OK:     true,
		Place:  place,
		Coords: &coords,
		Text:   domain.Compose(place, raw),
		Raw:    raw,
	}
	s.publish(ctx, place, kinds, result)
	return result
}

func (s *Service) publish(ctx context.Context, place string, kinds []domain.TaskKind, result domain.PlanResult) {
	if s.publisher == nil {
		return
	}

	event := domain.PlanEvent{
		ID:       uuid.NewString(),
		Place:    place,
		PlaceKey: domain.NormalizePlaceKey(place),
		OK:       result.OK,
		Coords:   result.Coords,
		Tasks:    kinds,
		Error:    result.Error,
		At:       domain.Now(),
	}
	for _, k := range kinds {
		if r, ok := result.Raw[k]; ok && r.Failed {
			event.FailedTasks = append(event.FailedTasks, k)
		}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("publish plan event failed", "event_id", event.ID, "error", err)
	}
}

// CheckReadiness reports whether the cache backend is reachable. Stores
// without a Ping method are always ready.
func (s *Service) CheckReadiness(ctx context.Context) error {
	p, ok := s.store.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("geocode cache unavailable: %w", err)
	}
	return nil
}
