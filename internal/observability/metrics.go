package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the federated search service.
// Metrics are organized by subsystem: searches, sources, merging, caching,
// and warming. All counters and histograms are registered against the given
// registerer via promauto.
type Metrics struct {
	// SearchesTotal counts federated search calls by kind (doi, keyword).
	SearchesTotal *prometheus.CounterVec

	// SearchesFailed counts federated search calls that ended in a pipeline error.
	SearchesFailed prometheus.Counter

	// SearchDuration observes end-to-end pipeline duration in seconds by kind.
	SearchDuration *prometheus.HistogramVec

	// SourceRequestsTotal counts requests to providers, labeled by source.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed provider requests, labeled by source and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes provider request duration in seconds by source.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceTimeouts counts provider requests that exceeded their timeout, labeled by source.
	SourceTimeouts *prometheus.CounterVec

	// RecordsMerged counts records collapsed away by deduplication.
	RecordsMerged prometheus.Counter

	// RecordsReturned observes the distribution of hits per search.
	RecordsReturned prometheus.Histogram

	// CacheHits counts cache hits, labeled by tier (l1, l2, l3) and strategy.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts full cache misses, labeled by strategy.
	CacheMisses *prometheus.CounterVec

	// CacheErrors counts cache backend failures, labeled by tier.
	CacheErrors *prometheus.CounterVec

	// CacheEvictions counts capacity evictions on the bounded tier.
	CacheEvictions prometheus.Counter

	// WarmingRuns counts cache warming runs, labeled by outcome (completed, skipped).
	WarmingRuns *prometheus.CounterVec

	// WarmingDuration observes warming run duration in seconds.
	WarmingDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized and
// registered against reg. The namespace is used as a prefix for all metric
// names. Pass prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of federated searches by query kind",
		}, []string{"kind"}),
		SearchesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of federated searches that failed",
		}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end duration of federated searches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),

		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to metadata providers",
		}, []string{"source"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed provider requests",
		}, []string{"source", "error_type"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of provider requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		SourceTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_timeouts_total",
			Help:      "Total number of provider requests that timed out",
		}, []string{"source"}),

		RecordsMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_merged_total",
			Help:      "Total number of duplicate records collapsed by merging",
		}),
		RecordsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_returned",
			Help:      "Number of hits returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}),

		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by tier and strategy",
		}, []string{"tier", "strategy"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses by strategy",
		}, []string{"strategy"}),
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of cache backend failures by tier",
		}, []string{"tier"}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of capacity evictions on the bounded tier",
		}),

		WarmingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warming_runs_total",
			Help:      "Total number of cache warming runs by outcome",
		}, []string{"outcome"}),
		WarmingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_warming_duration_seconds",
			Help:      "Duration of cache warming runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
	}
}

// RecordSearch records a completed federated search.
func (m *Metrics) RecordSearch(kind string, durationSeconds float64, hits int) {
	m.SearchesTotal.WithLabelValues(kind).Inc()
	m.SearchDuration.WithLabelValues(kind).Observe(durationSeconds)
	m.RecordsReturned.Observe(float64(hits))
}

// RecordSearchFailed records a federated search that ended in a pipeline error.
func (m *Metrics) RecordSearchFailed(kind string, durationSeconds float64) {
	m.SearchesFailed.Inc()
	m.SearchDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordSourceRequest records a provider request.
func (m *Metrics) RecordSourceRequest(source string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed provider request.
func (m *Metrics) RecordSourceRequestFailed(source, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, errorType).Inc()
}

// RecordSourceTimeout records a provider request that exceeded its timeout.
func (m *Metrics) RecordSourceTimeout(source string) {
	m.SourceTimeouts.WithLabelValues(source).Inc()
}

// RecordCacheHit records a cache hit on the given tier.
func (m *Metrics) RecordCacheHit(tier, strategy string) {
	m.CacheHits.WithLabelValues(tier, strategy).Inc()
}

// RecordCacheMiss records a full cache miss.
func (m *Metrics) RecordCacheMiss(strategy string) {
	m.CacheMisses.WithLabelValues(strategy).Inc()
}

// RecordCacheError records a cache backend failure on the given tier.
func (m *Metrics) RecordCacheError(tier string) {
	m.CacheErrors.WithLabelValues(tier).Inc()
}

// RecordCacheEvictions records capacity evictions on the bounded tier.
func (m *Metrics) RecordCacheEvictions(count int) {
	m.CacheEvictions.Add(float64(count))
}

// RecordWarmingRun records a cache warming run.
func (m *Metrics) RecordWarmingRun(outcome string, durationSeconds float64) {
	m.WarmingRuns.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		m.WarmingDuration.Observe(durationSeconds)
	}
}
