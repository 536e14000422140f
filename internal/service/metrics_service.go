package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP, cache and document lifecycle counters.
// A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	documentUploads   *prometheus.CounterVec
	documentRemovals  *prometheus.CounterVec
	purgeBatchSize    prometheus.Histogram
	permissionResults *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	uploadCount          uint64
	purgeCount           uint64
	denialCount          uint64
}

// NewMetricsService registers the collectors on a private registry.
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups partitioned by outcome",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache reads",
		Buckets: prometheus.DefBuckets,
	})

	documentUploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_uploaded_total",
		Help: "Documents stored, by owner type and upload kind",
	}, []string{"entity_type", "kind"})

	documentRemovals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_removed_total",
		Help: "Documents archived or purged, by mode and outcome",
	}, []string{"mode", "result"})

	purgeBatchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "documents_purge_batch_size",
		Help:    "Matched rows per accepted bulk purge",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
	})

	permissionResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "permission_checks_total",
		Help: "Permission decisions by deciding layer and result",
	}, []string{"source", "allowed"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheLatency, documentUploads, documentRemovals, purgeBatchSize, permissionResults, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLookups:      cacheLookups,
		cacheLatency:      cacheLatency,
		documentUploads:   documentUploads,
		documentRemovals:  documentRemovals,
		purgeBatchSize:    purgeBatchSize,
		permissionResults: permissionResults,
	}
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

// ObserveHTTPRequest records request metrics.
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

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// RecordDocumentUpload counts a stored upload.
func (m *MetricsService) RecordDocumentUpload(entityType models.EntityType, kind string) {
	if m == nil {
		return
	}
	m.documentUploads.WithLabelValues(string(entityType), kind).Inc()
	atomic.AddUint64(&m.uploadCount, 1)
}

// RecordDocumentRemoval counts archive and purge outcomes.
func (m *MetricsService) RecordDocumentRemoval(mode string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.documentRemovals.WithLabelValues(mode, result).Inc()
	if ok && mode != "archive" {
		atomic.AddUint64(&m.purgeCount, 1)
	}
}

// ObservePurgeBatch records the size of an accepted bulk purge.
func (m *MetricsService) ObservePurgeBatch(matched int) {
	if m == nil {
		return
	}
	m.purgeBatchSize.Observe(float64(matched))
}

// RecordPermissionCheck counts a resolved permission decision.
func (m *MetricsService) RecordPermissionCheck(source models.PermissionSource, allowed bool) {
	if m == nil {
		return
	}
	m.permissionResults.WithLabelValues(string(source), fmt.Sprintf("%t", allowed)).Inc()
	if !allowed {
		atomic.AddUint64(&m.denialCount, 1)
	}
}

// Snapshot returns aggregated counters for the metrics summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		DocumentsUploaded:        atomic.LoadUint64(&m.uploadCount),
		DocumentsPurged:          atomic.LoadUint64(&m.purgeCount),
		PermissionDenials:        atomic.LoadUint64(&m.denialCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
