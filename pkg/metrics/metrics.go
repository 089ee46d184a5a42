// Package metrics defines the Prometheus collectors of the ingestion, matcher
// and maintenance services and serves them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	HTTPRequestsInFlight    prometheus.Gauge
	IngestDocumentsTotal    *prometheus.CounterVec
	IngestFailuresTotal     *prometheus.CounterVec
	IngestSkillCount        *prometheus.HistogramVec
	SyntheticSkillsTotal    *prometheus.CounterVec
	IdentityConflictRetries prometheus.Counter
	RankRequestsTotal       *prometheus.CounterVec
	RankLatency             *prometheus.HistogramVec
	RankResultsCount        prometheus.Histogram
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	MaintenanceRunsTotal    *prometheus.CounterVec
	CircuitBreakerState     *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. Passing nil
// registers on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		IngestDocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_documents_total",
				Help: "Documents ingested by kind and reconcile action (create, update, unchanged).",
			},
			[]string{"kind", "action"},
		),
		IngestFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_failures_total",
				Help: "Ingestion items rejected by kind and reason.",
			},
			[]string{"kind", "reason"},
		),
		IngestSkillCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_skill_count",
				Help:    "Skill set size of ingested documents.",
				Buckets: []float64{0, 4, 8, 12, 16, 20, 25, 30, 35},
			},
			[]string{"kind"},
		),
		SyntheticSkillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthetic_skills_total",
				Help: "Synthetic skills added by the enricher, by reason.",
			},
			[]string{"reason"},
		),
		IdentityConflictRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "identity_conflict_retries_total",
				Help: "Reconcile attempts repeated after a uniqueness or staleness conflict.",
			},
		),
		RankRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rank_requests_total",
				Help: "Rank requests by direction and outcome.",
			},
			[]string{"direction", "outcome"},
		),
		RankLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rank_latency_seconds",
				Help:    "Rank latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		RankResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rank_results_count",
				Help:    "Number of counterparts returned per rank call.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "match_cache_hits_total",
				Help: "Total number of match cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "match_cache_misses_total",
				Help: "Total number of match cache misses.",
			},
		),
		MaintenanceRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maintenance_runs_total",
				Help: "Maintenance job executions by job and status.",
			},
			[]string{"job", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.IngestDocumentsTotal,
		m.IngestFailuresTotal,
		m.IngestSkillCount,
		m.SyntheticSkillsTotal,
		m.IdentityConflictRetries,
		m.RankRequestsTotal,
		m.RankLatency,
		m.RankResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.MaintenanceRunsTotal,
		m.CircuitBreakerState,
	)

	return m
}
