package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the engine itself.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	rollbacks       prometheus.Counter
	staleCompletion prometheus.Counter
	staleSnapshots  prometheus.Counter
	reviewsCreated  prometheus.Counter
	alertsRaised    prometheus.Counter
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_cache_latency_seconds",
		Help:    "Latency for snapshot cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_hits_total",
		Help: "Total snapshot cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_misses_total",
		Help: "Total snapshot cache misses",
	})

	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_rollbacks_total",
		Help: "Optimistic updates rolled back after an upstream failure",
	})

	staleCompletion := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_stale_completions_total",
		Help: "In-flight responses discarded because their context changed",
	})

	staleSnapshots := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_stale_snapshot_entries_total",
		Help: "Snapshot entries discarded in favor of newer local updates",
	})

	reviewsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_reviews_created_total",
		Help: "Manual reviews created",
	})

	alertsRaised := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_alerts_total",
		Help: "Alerts pushed onto the process-wide queue",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency,
		cacheHits, cacheMisses, rollbacks, staleCompletion, staleSnapshots, reviewsCreated, alertsRaised, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		rollbacks:       rollbacks,
		staleCompletion: staleCompletion,
		staleSnapshots:  staleSnapshots,
		reviewsCreated:  reviewsCreated,
		alertsRaised:    alertsRaised,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records duration and count for one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordCacheOperation records one snapshot cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordRollback counts one rolled-back optimistic update.
func (m *MetricsService) RecordRollback() {
	m.rollbacks.Inc()
}

// RecordStaleCompletion counts one discarded stale response.
func (m *MetricsService) RecordStaleCompletion() {
	m.staleCompletion.Inc()
}

// RecordStaleSnapshotEntries counts snapshot entries dropped during
// reconciliation because a newer local update had touched them.
func (m *MetricsService) RecordStaleSnapshotEntries(n int) {
	if n > 0 {
		m.staleSnapshots.Add(float64(n))
	}
}

// RecordReviewCreated counts one created review.
func (m *MetricsService) RecordReviewCreated() {
	m.reviewsCreated.Inc()
}

// RecordAlert counts one raised alert.
func (m *MetricsService) RecordAlert() {
	m.alertsRaised.Inc()
}
