// Package enrich runs the enrichment tasks for a resolved location
// concurrently and collects each task's outcome in its own slot.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/couchcryptid/place-planner/internal/observability"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// TaskFunc performs one enrichment for the coordinates and returns its
// structured value.
type TaskFunc func(ctx context.Context, coords domain.Coords) (any, error)

// Coordinator fans enrichment tasks out and waits for all of them.
type Coordinator struct {
	tasks   map[domain.TaskKind]TaskFunc
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCoordinator creates a Coordinator dispatching each task kind to its function.
func NewCoordinator(tasks map[domain.TaskKind]TaskFunc, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	registered := make(map[domain.TaskKind]TaskFunc, len(tasks))
	for k, fn := range tasks {
		registered[k] = fn
	}
	return &Coordinator{tasks: registered, logger: logger, metrics: metrics}
}

// Enrich runs every requested kind concurrently and returns one result per
// kind. Task errors and panics become failure results; Enrich itself never
// fails. Cancelling ctx does not stop units already dispatched.
func (c *Coordinator) Enrich(ctx context.Context, coords domain.Coords, kinds []domain.TaskKind) map[domain.TaskKind]domain.TaskResult {
	results := make(map[domain.TaskKind]domain.TaskResult, len(kinds))
	if len(kinds) == 0 {
		return results
	}

	taskCtx := context.WithoutCancel(ctx)
	var mu sync.Mutex
	var wg conc.WaitGroup
	for _, kind := range uniqueKinds(kinds) {
		wg.Go(func() {
			res := c.run(taskCtx, kind, coords)
			mu.Lock()
			results[kind] = res
			mu.Unlock()
		})
	}
	wg.Wait()
	return results
}

func uniqueKinds(kinds []domain.TaskKind) []domain.TaskKind {
	seen := make(map[domain.TaskKind]struct{}, len(kinds))
	out := make([]domain.TaskKind, 0, len(kinds))
	for _, k := range kinds {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (c *Coordinator) run(ctx context.Context, kind domain.TaskKind, coords domain.Coords) domain.TaskResult {
	fn, ok := c.tasks[kind]
	if !ok {
		c.metrics.EnrichTasks.WithLabelValues(string(kind), "failure").Inc()
		return domain.Failure(kind, fmt.Errorf("%w: %q", domain.ErrUnknownTask, kind))
	}

	start := time.Now()
	var (
		value any
		err   error
		pc    panics.Catcher
	)
	pc.Try(func() {
		value, err = fn(ctx, coords)
	})
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("%s task panicked: %v", kind, r.Value)
		c.logger.Error("enrichment task panicked", "task", kind, "panic", r.Value, "stack", string(r.Stack))
	}
	c.metrics.EnrichDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.EnrichTasks.WithLabelValues(string(kind), "failure").Inc()
		c.logger.Warn("enrichment task failed", "task", kind, "lat", coords.Lat, "lon", coords.Lon, "error", err)
		return domain.Failure(kind, err)
	}
	c.metrics.EnrichTasks.WithLabelValues(string(kind), "success").Inc()
	return domain.Success(kind, value)
}
