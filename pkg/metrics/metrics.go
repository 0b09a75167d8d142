// Package metrics defines the Prometheus collectors of the search service.
// Every collector lives under the "minisearch" namespace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "minisearch"

type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPResponseBytes    *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     prometheus.Counter

	// queries
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount *prometheus.HistogramVec
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	AnalyticsDropped   prometheus.Counter

	// index lifecycle
	DocsIndexedTotal   prometheus.Counter
	IndexBuildsTotal   *prometheus.CounterVec
	IndexBuildDuration prometheus.Histogram
	IndexDocuments     prometheus.Gauge
	IndexTerms         prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a fresh registry that
// also carries the Go runtime and process collectors; the package never
// touches the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		HTTPResponseBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "response_bytes",
			Help:    "HTTP response body size.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 8),
		}, []string{"path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		RateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		}),

		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "queries_total",
			Help: "Queries by mode (exact, prefix, autocomplete) and outcome (ok, zero_result, error).",
		}, []string{"mode", "outcome"}),
		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "latency_seconds",
			Help:    "Query latency, split by cache status.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"mode", "cache_status"}),
		SearchResultsCount: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "results",
			Help:    "Total matching results per query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
		}, []string{"mode"}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Result pages served from Redis.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Result pages computed because Redis had no entry or was unreachable.",
		}),
		AnalyticsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analytics", Name: "events_dropped_total",
			Help: "Search events dropped because the analytics buffer was full.",
		}),

		DocsIndexedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "index", Name: "docs_indexed_total",
			Help: "Documents tokenised across all builds.",
		}),
		IndexBuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "index", Name: "builds_total",
			Help: "Index builds by status (built, snapshot, failed).",
		}, []string{"status"}),
		IndexBuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "index", Name: "build_duration_seconds",
			Help:    "Time to build or restore an index.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		IndexDocuments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "documents",
			Help: "Documents in the published index.",
		}),
		IndexTerms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "terms",
			Help: "Distinct terms in the published index.",
		}),

		gatherer: gatherer,
	}
}

// Handler serves the registry m was created on. When that registerer cannot
// be gathered from, the default gatherer is served instead.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
