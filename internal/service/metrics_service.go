package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
	"github.com/noah-isme/prayer-schedule-api/pkg/resilience"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry                  *prometheus.Registry
	handler                   http.Handler
	requestDuration           *prometheus.HistogramVec
	requestTotal              *prometheus.CounterVec
	cacheLatency              prometheus.Observer
	cacheWrite                prometheus.Observer
	cacheHitRatio             prometheus.Gauge
	cacheHits                 prometheus.Counter
	cacheInvalidationFailures prometheus.Counter
	cacheMisses               prometheus.Counter
	remoteDuration            *prometheus.HistogramVec
	remoteAttempts            *prometheus.CounterVec
	circuitState              *prometheus.GaugeVec
	importRows                *prometheus.CounterVec
	fallbackSource            *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	remoteCallCount      uint64
	remoteDurationTotal  uint64
}

// NewMetricsService registers core Prometheus collectors.
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cacheInvalidationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_cache_invalidation_failures_total",
		Help: "Cache invalidations that failed after a schedule write",
	})

	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_remote_call_duration_seconds",
		Help:    "Duration of guarded remote store calls, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	remoteAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_remote_attempts_total",
		Help: "Remote store attempts by operation and outcome",
	}, []string{"operation", "outcome"})

	circuitState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "schedule_circuit_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"operation"})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_import_rows_total",
		Help: "Rows seen by schedule imports",
	}, []string{"mode", "result"})

	fallbackSource := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_fallback_source_total",
		Help: "Timeline loads by resolved source",
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		cacheInvalidationFailures, remoteDuration, remoteAttempts, circuitState, importRows, fallbackSource, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:                  registry,
		handler:                   handler,
		requestDuration:           requestDuration,
		requestTotal:              requestTotal,
		cacheLatency:              cacheLatency,
		cacheWrite:                cacheWrite,
		cacheHitRatio:             cacheHitRatio,
		cacheHits:                 cacheHits,
		cacheInvalidationFailures: cacheInvalidationFailures,
		cacheMisses:               cacheMisses,
		remoteDuration:            remoteDuration,
		remoteAttempts:            remoteAttempts,
		circuitState:              circuitState,
		importRows:                importRows,
		fallbackSource:            fallbackSource,
	}
}

// Registry exposes the underlying Prometheus registry (tests gather from it).
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordCacheInvalidationFailure counts a failed cache invalidation.
func (m *MetricsService) RecordCacheInvalidationFailure() {
	if m == nil {
		return
	}
	m.cacheInvalidationFailures.Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordRemoteAttempt counts one attempt against the remote store.
func (m *MetricsService) RecordRemoteAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.remoteAttempts.WithLabelValues(operation, outcome).Inc()
}

// ObserveRemoteCall records the full duration of a guarded remote call.
func (m *MetricsService) ObserveRemoteCall(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
	atomic.AddUint64(&m.remoteCallCount, 1)
	atomic.AddUint64(&m.remoteDurationTotal, uint64(duration.Nanoseconds()))
}

// SetCircuitState publishes a breaker transition.
func (m *MetricsService) SetCircuitState(operation string, state resilience.State) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(operation).Set(float64(state))
}

// RecordImportRows counts imported and skipped rows of an import.
func (m *MetricsService) RecordImportRows(mode models.ImportMode, imported, skipped int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(string(mode), "imported").Add(float64(imported))
	m.importRows.WithLabelValues(string(mode), "skipped").Add(float64(skipped))
}

// RecordFallbackSource counts where a timeline load was served from.
func (m *MetricsService) RecordFallbackSource(source models.TimelineSource) {
	if m == nil {
		return
	}
	m.fallbackSource.WithLabelValues(string(source)).Inc()
}

// Snapshot returns aggregated metrics for the JSON summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	remoteCount := atomic.LoadUint64(&m.remoteCallCount)
	remoteDuration := atomic.LoadUint64(&m.remoteDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgRemoteMs float64
	if remoteCount > 0 {
		avgRemoteMs = float64(remoteDuration) / float64(remoteCount) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:             cacheRatio,
		CacheHits:                 hits,
		CacheMisses:               misses,
		RequestsTotal:             requests,
		AverageRequestDurationMs:  avgRequestMs,
		RemoteCallCount:           remoteCount,
		AverageRemoteCallDuration: avgRemoteMs,
		Goroutines:                runtime.NumGoroutine(),
		GeneratedAt:               time.Now().UTC(),
	}
}
