package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconcile outcomes reported on reconcile_operations_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Cache lookup results reported on cache_lookups_total.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// MetricsService owns the Prometheus registry for HTTP, cache and reconciliation metrics.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	cacheLookups  *prometheus.CounterVec
	cacheDuration *prometheus.HistogramVec

	reconcileTotal    *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	reconcileRows     *prometheus.CounterVec
}

// reconcile transactions hold row locks, so the buckets resolve the sub-second range finely.
var reconcileBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Sheet cache lookups by result",
		}, []string{"result"}),
		cacheDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_operation_seconds",
			Help:    "Latency of sheet cache calls",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"op"}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_operations_total",
			Help: "Engine operations by outcome",
		}, []string{"operation", "outcome"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of engine transactions in seconds",
			Buckets: reconcileBuckets,
		}, []string{"operation"}),
		reconcileRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_rows_written_total",
			Help: "Child rows written by committed engine operations",
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLookups, m.cacheDuration,
		m.reconcileTotal, m.reconcileDuration, m.reconcileRows,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveCacheLookup counts one read against the sheet cache.
func (m *MetricsService) ObserveCacheLookup(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheDuration.WithLabelValues("get").Observe(duration.Seconds())
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheDuration.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveReconcile records one engine operation. rows is only counted on success.
func (m *MetricsService) ObserveReconcile(operation string, err error, rows int, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.reconcileTotal.WithLabelValues(operation, outcome).Inc()
	m.reconcileDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err == nil && rows > 0 {
		m.reconcileRows.WithLabelValues(operation).Add(float64(rows))
	}
}
