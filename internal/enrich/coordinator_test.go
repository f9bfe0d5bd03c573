package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/couchcryptid/place-planner/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var paris = domain.Coords{Lat: 48.8566, Lon: 2.3522}

func TestEnrich_WeatherFailsPlacesSucceeds(t *testing.T) {
	places := []domain.PlaceInfo{{Name: "Louvre Museum"}, {Name: "Eiffel Tower"}}
	metrics := observability.NewMetricsForTesting()
	c := NewCoordinator(map[domain.TaskKind]TaskFunc{
		domain.TaskWeather: func(context.Context, domain.Coords) (any, error) {
			return nil, errors.New("weather request: connection refused")
		},
		domain.TaskPlaces: func(_ context.Context, coords domain.Coords) (any, error) {
			assert.Equal(t, paris, coords)
			return places, nil
		},
	}, testLogger(), metrics)

	got := c.Enrich(context.Background(), paris, []domain.TaskKind{domain.TaskWeather, domain.TaskPlaces})
	require.Len(t, got, 2)

	w := got[domain.TaskWeather]
	assert.True(t, w.Failed)
	assert.Equal(t, domain.TaskWeather, w.Kind)
	assert.Equal(t, "weather request: connection refused", w.Err)

	p := got[domain.TaskPlaces]
	assert.False(t, p.Failed)
	assert.Equal(t, places, p.Value)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EnrichTasks.WithLabelValues("weather", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EnrichTasks.WithLabelValues("places", "success")), 0)
}

func TestEnrich_EmptyKindsReturnsEmptyMapping(t *testing.T) {
	var calls atomic.Int32
	c := NewCoordinator(map[domain.TaskKind]TaskFunc{
		domain.TaskWeather: func(context.Context, domain.Coords) (any, error) {
			calls.Add(1)
			return nil, nil
		},
	}, testLogger(), observability.NewMetricsForTesting())

	got := c.Enrich(context.Background(), paris, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, calls.Load())
}

func TestEnrich_PanicIsCapturedAsFailure(t *testing.T) {
	c := NewCoordinator(map[domain.TaskKind]TaskFunc{
		domain.TaskWeather: func(context.Context, domain.Coords) (any, error) {
			panic("nil forecast")
		},
		domain.TaskPlaces: func(context.Context, domain.Coords) (any, error) {
			return []domain.PlaceInfo{}, nil
		},
	}, testLogger(), observability.NewMetricsForTesting())

	got := c.Enrich(context.Background(), paris, []domain.TaskKind{domain.TaskWeather, domain.TaskPlaces})
	require.Len(t, got, 2)
	assert.True(t, got[domain.TaskWeather].Failed)
	assert.Contains(t, got[domain.TaskWeather].Err, "nil forecast")
	assert.False(t, got[domain.TaskPlaces].Failed)
}

func TestEnrich_RunsConcurrently(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	task := func(context.Context, domain.Coords) (any, error) {
		started <- struct{}{}
		<-release
		return "done", nil
	}
	c := NewCoordinator(map[domain.TaskKind]TaskFunc{
		domain.TaskWeather: task,
		domain.TaskPlaces:  task,
	}, testLogger(), observability.NewMetricsForTesting())

	done := make(chan map[domain.TaskKind]domain.TaskResult, 1)
	go func() {
		done <- c.Enrich(context.Background(), paris, []domain.TaskKind{domain.TaskWeather, domain.TaskPlaces})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("tasks were not dispatched concurrently")
		}
	}
	close(release)

	got := <-done
	assert.Equal(t, "done", got[domain.TaskWeather].Value)
	assert.Equal(t, "done", got[domain.TaskPlaces].Value)
}

func TestEnrich_DuplicateKindsDispatchOnce(t *testing.T) {
	var calls atomic.Int32
	c := NewCoordinator(map[domain.TaskKind]TaskFunc{
		domain.TaskPlaces: func(context.Context, domain.Coords) (any, error) {
			calls.Add(1)
			return []domain.PlaceInfo{}, nil
		},
	}, testLogger(), observability.NewMetricsForTesting())

	got := c.Enrich(context.Background(), paris, []domain.TaskKind{domain.TaskPlaces, domain.TaskPlaces})
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnrich_UnregisteredKindIsFailure(t *testing.T) {
	c := NewCoordinator(map[domain.TaskKind]TaskFunc{}, testLogger(), observability.NewMetricsForTesting())

	got := c.Enrich(context.Background(), paris, []domain.TaskKind{domain.TaskWeather})
	require.Contains(t, got, domain.TaskWeather)
	assert.True(t, got[domain.TaskWeather].Failed)
	assert.Contains(t, got[domain.TaskWeather].Err, "unknown task")
}

func TestEnrich_CallerCancellationDoesNotReachTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCoordinator(map[domain.TaskKind]TaskFunc{
		domain.TaskWeather: func(ctx context.Context, _ domain.Coords) (any, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return "sunny", nil
		},
	}, testLogger(), observability.NewMetricsForTesting())

	got := c.Enrich(ctx, paris, []domain.TaskKind{domain.TaskWeather})
	assert.False(t, got[domain.TaskWeather].Failed)
	assert.Equal(t, "sunny", got[domain.TaskWeather].Value)
}
