package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the planner.
type Metrics struct {
	Plans *prometheus.CounterVec // labels: outcome={ok,not_found,geocode_error,invalid}

	// Geocoding metrics.
	GeocodeRequests      *prometheus.CounterVec   // labels: provider, outcome={success,empty,error}
	GeocodeCache         *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeCacheErrors   *prometheus.CounterVec   // labels: op={load,save}
	GeocodeRetries       *prometheus.CounterVec   // labels: provider, class
	GeocodeAPIDuration   *prometheus.HistogramVec // labels: provider
	GeocodeSecondaryUsed prometheus.Gauge

	// Enrichment metrics.
	EnrichTasks    *prometheus.CounterVec   // labels: task, outcome={success,failure}
	EnrichDuration *prometheus.HistogramVec // labels: task
}

var (
	apiBuckets  = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30}
	taskBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// NewMetrics creates and registers all planner metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Plans,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeCacheErrors,
		m.GeocodeRetries,
		m.GeocodeAPIDuration,
		m.GeocodeSecondaryUsed,
		m.EnrichTasks,
		m.EnrichDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "plans_total",
			Help:      "Plan requests by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		GeocodeCacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "geocode_cache_errors_total",
			Help:      "Geocode cache store failures by operation.",
		}, []string{"op"}),
		GeocodeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "geocode_retries_total",
			Help:      "Backoff retries against a geocoding provider by error class.",
		}, []string{"provider", "class"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planner",
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   apiBuckets,
		}, []string{"provider"}),
		GeocodeSecondaryUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "planner",
			Name:      "geocode_secondary_enabled",
			Help:      "1 when a secondary geocoding provider is configured, 0 otherwise.",
		}),
		EnrichTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "enrich_tasks_total",
			Help:      "Enrichment task executions by task and outcome.",
		}, []string{"task", "outcome"}),
		EnrichDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planner",
			Name:      "enrich_task_duration_seconds",
			Help:      "Enrichment task duration in seconds.",
			Buckets:   taskBuckets,
		}, []string{"task"}),
	}
}
