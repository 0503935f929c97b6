// Package metrics defines the Prometheus metric collectors used by the search
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing, which keeps tests and tools free of registries.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	BranchFailuresTotal  *prometheus.CounterVec
	ConceptCallsTotal    *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexDocuments       prometheus.Gauge
	IndexGeneration      prometheus.Gauge
	IndexWritesTotal     *prometheus.CounterVec
	IndexBuildsTotal     *prometheus.CounterVec
	HistoryRecordsTotal  *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by search type and outcome (ok, zero_result, degraded, invalid, error).",
			},
			[]string{"search_type", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
		),
		BranchFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_branch_failures_total",
				Help: "Retrieval branch failures by branch (text, semantic).",
			},
			[]string{"branch"},
		),
		ConceptCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concept_extraction_calls_total",
				Help: "Concept-extraction collaborator calls by outcome (ok, error, timeout, circuit_open, disabled).",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the current corpus index snapshot.",
			},
		),
		IndexGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_generation",
				Help: "Generation number of the current corpus index snapshot.",
			},
		),
		IndexWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_writes_total",
				Help: "Incremental index writes by operation (upsert, remove).",
			},
			[]string{"op"},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Full index builds by status.",
			},
			[]string{"status"},
		),
		HistoryRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_history_records_total",
				Help: "Search history appends by status.",
			},
			[]string{"status"},
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
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.BranchFailuresTotal,
		m.ConceptCallsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexDocuments,
		m.IndexGeneration,
		m.IndexWritesTotal,
		m.IndexBuildsTotal,
		m.HistoryRecordsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(searchType, outcome, cacheStatus string, seconds float64, results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(searchType, outcome).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(seconds)
	m.SearchResultsCount.Observe(float64(results))
}

// BranchFailed counts a failed retrieval branch.
func (m *Metrics) BranchFailed(branch string) {
	if m == nil {
		return
	}
	m.BranchFailuresTotal.WithLabelValues(branch).Inc()
}

// ConceptCall counts a concept-extraction call outcome.
func (m *Metrics) ConceptCall(outcome string) {
	if m == nil {
		return
	}
	m.ConceptCallsTotal.WithLabelValues(outcome).Inc()
}

// CacheResult counts a cache lookup.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}

// IndexState publishes the current snapshot size and generation.
func (m *Metrics) IndexState(docs int, generation uint64) {
	if m == nil {
		return
	}
	m.IndexDocuments.Set(float64(docs))
	m.IndexGeneration.Set(float64(generation))
}

// IndexWrite counts an incremental index write.
func (m *Metrics) IndexWrite(op string) {
	if m == nil {
		return
	}
	m.IndexWritesTotal.WithLabelValues(op).Inc()
}

// IndexBuild counts a full index build.
func (m *Metrics) IndexBuild(status string) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(status).Inc()
}

// HistoryRecord counts a search-history append.
func (m *Metrics) HistoryRecord(status string) {
	if m == nil {
		return
	}
	m.HistoryRecordsTotal.WithLabelValues(status).Inc()
}

// BreakerState publishes a circuit breaker state.
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
