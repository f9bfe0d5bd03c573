// Package geocode resolves free-text place names to coordinates through a
// persistent cache, a primary provider with backoff, and an optional
// secondary provider used only when the primary cannot answer.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/couchcryptid/place-planner/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Resolver implements the cache-then-provider lookup. It is the only
// component that writes to the cache store.
type Resolver struct {
	store          domain.CacheStore
	primary        domain.GeocodeProvider
	secondary      domain.GeocodeProvider
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	clock          clockwork.Clock
	group          singleflight.Group
	logger         *slog.Logger
	metrics        *observability.Metrics

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of one shared upstream lookup. It is cancelled only
// once every caller waiting on the key has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxRetries sets the number of primary provider attempts. Values below
// one are raised to one.
func WithMaxRetries(n int) Option {
	return func(r *Resolver) {
		if n < 1 {
			n = 1
		}
		r.maxRetries = n
	}
}

// WithInitialBackoff sets the delay before the first retry. Each further
// retry doubles it.
func WithInitialBackoff(d time.Duration) Option {
	return func(r *Resolver) { r.initialBackoff = d }
}

// WithMaxBackoff caps the doubling delay between retries. Non-positive
// values keep the default.
func WithMaxBackoff(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.maxBackoff = d
		}
	}
}

// WithClock replaces the clock used for backoff delays.
func WithClock(c clockwork.Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

// NewResolver creates a Resolver. secondary may be nil.
func NewResolver(store domain.CacheStore, primary, secondary domain.GeocodeProvider, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Resolver {
	r := &Resolver{
		store:          store,
		primary:        primary,
		secondary:      secondary,
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		clock:          clockwork.NewRealClock(),
		logger:         logger,
		metrics:        metrics,
		flights:        make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(r)
	}

	if secondary != nil {
		metrics.GeocodeSecondaryUsed.Set(1)
	} else {
		metrics.GeocodeSecondaryUsed.Set(0)
	}
	return r
}

// Resolve returns the location for place. It fails with domain.ErrNotFound
// when the primary provider has no match, or with the provider error when
// resolution could not complete.
func (r *Resolver) Resolve(ctx context.Context, place string) (domain.LocationRecord, error) {
	key := domain.NormalizePlaceKey(place)
	if key == "" {
		return domain.LocationRecord{}, domain.ErrNotFound
	}

	if rec, ok := r.loadCache(ctx)[key]; ok {
		r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		r.logger.Debug("geocode cache hit", "place_key", key)
		return rec, nil
	}
	r.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	query := strings.TrimSpace(place)
	f := r.join(ctx, key)
	defer r.leave(key, f)

	ch := r.group.DoChan(key, func() (any, error) {
		// A lookup that finished while this caller was queued has already cached the key.
		if rec, ok := r.loadCache(f.ctx)[key]; ok {
			return rec, nil
		}
		return r.resolveUpstream(f.ctx, key, query)
	})

	select {
	case <-ctx.Done():
		return domain.LocationRecord{}, fmt.Errorf("geocode %q: %w", query, ctx.Err())
	case res := <-ch:
		if res.Shared {
			r.logger.Debug("geocode lookup shared with concurrent caller", "place_key", key)
		}
		if res.Err != nil {
			return domain.LocationRecord{}, res.Err
		}
		return res.Val.(domain.LocationRecord), nil
	}
}

// join registers the caller as a waiter on key's lookup. The lookup context
// is detached from any single caller.
func (r *Resolver) join(ctx context.Context, key string) *flight {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[key]
	if !ok {
		lookupCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: lookupCtx, cancel: cancel}
		r.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops the caller. The last one out cancels the lookup and makes the
// next caller start a fresh one.
func (r *Resolver) leave(key string, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.flights[key] == f {
		delete(r.flights, key)
	}
	r.group.Forget(key)
}

func (r *Resolver) resolveUpstream(ctx context.Context, key, query string) (domain.LocationRecord, error) {
	delay := r.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		candidates, err := r.primary.Search(ctx, query)
		if err == nil {
			if len(candidates) == 0 {
				r.logger.Info("place not found", "place", query, "provider", r.primary.Name())
				return domain.LocationRecord{}, domain.ErrNotFound
			}
			return r.remember(ctx, key, candidates[0].Record()), nil
		}

		lastErr = err
		class := domain.ClassOf(err)
		if !class.Transient() {
			r.logger.Warn("geocode provider failed",
				"provider", r.primary.Name(), "place", query, "error", err)
			return r.fallback(ctx, key, query, err)
		}
		if attempt == r.maxRetries {
			break
		}
		if ctx.Err() != nil {
			return domain.LocationRecord{}, fmt.Errorf("geocode %q: %w", query, ctx.Err())
		}

		r.metrics.GeocodeRetries.WithLabelValues(r.primary.Name(), string(class)).Inc()
		r.logger.Warn("geocode provider transient failure, backing off",
			"provider", r.primary.Name(), "place", query, "attempt", attempt,
			"class", class, "backoff", delay, "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return domain.LocationRecord{}, fmt.Errorf("geocode %q: %w", query, err)
		}
		delay = retry.NextBackoff(delay, r.maxBackoff)
	}

	r.logger.Warn("geocode retries exhausted",
		"provider", r.primary.Name(), "place", query, "attempts", r.maxRetries, "error", lastErr)
	return r.fallback(ctx, key, query, lastErr)
}

// fallback tries the secondary provider once. Any failure there, including
// no match, surfaces the primary provider's error.
func (r *Resolver) fallback(ctx context.Context, key, query string, primaryErr error) (domain.LocationRecord, error) {
	if r.secondary == nil {
		return domain.LocationRecord{}, primaryErr
	}

	candidates, err := r.secondary.Search(ctx, query)
	switch {
	case err != nil:
		r.logger.Warn("secondary geocode provider failed",
			"provider", r.secondary.Name(), "place", query, "error", err)
		return domain.LocationRecord{}, primaryErr
	case len(candidates) == 0:
		r.logger.Info("secondary geocode provider found no match",
			"provider", r.secondary.Name(), "place", query)
		return domain.LocationRecord{}, primaryErr
	}

	r.logger.Info("place resolved by secondary provider",
		"provider", r.secondary.Name(), "place", query)
	return r.remember(ctx, key, candidates[0].Record()), nil
}

// remember writes rec under key. The store is reloaded first so entries
// written since the lookup are kept.
func (r *Resolver) remember(ctx context.Context, key string, rec domain.LocationRecord) domain.LocationRecord {
	entries := r.loadCache(ctx)
	entries[key] = rec
	if err := r.store.Save(ctx, entries); err != nil {
		r.metrics.GeocodeCacheErrors.WithLabelValues("save").Inc()
		r.logger.Warn("geocode cache save failed", "place_key", key, "error", err)
	}
	return rec
}

// loadCache never fails: an unavailable store reads as empty.
func (r *Resolver) loadCache(ctx context.Context) map[string]domain.LocationRecord {
	entries, err := r.store.Load(ctx)
	if err != nil {
		r.metrics.GeocodeCacheErrors.WithLabelValues("load").Inc()
		r.logger.Warn("geocode cache load failed", "error", err)
	}
	if entries == nil || err != nil {
		return map[string]domain.LocationRecord{}
	}
	return entries
}

func (r *Resolver) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(d):
		return nil
	}
}
