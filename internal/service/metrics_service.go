package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	fanOutTotal     prometheus.Counter
	fanOutSize      prometheus.Histogram
	uploadsTotal    *prometheus.CounterVec
	emailsEnqueued  prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
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

	fanOutTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "material_fanout_total",
		Help: "Total number of material fan-out batches",
	})

	fanOutSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "material_fanout_size",
		Help:    "Number of notifications produced per material upload",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "material_uploads_total",
		Help: "Total material uploads by type",
	}, []string{"type"})

	emailsEnqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emails_enqueued_total",
		Help: "Total emails enqueued for delivery",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, fanOutTotal, fanOutSize, uploadsTotal, emailsEnqueued, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		fanOutTotal:     fanOutTotal,
		fanOutSize:      fanOutSize,
		uploadsTotal:    uploadsTotal,
		emailsEnqueued:  emailsEnqueued,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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
}

// ObserveFanOut records one material fan-out batch and its size.
func (m *MetricsService) ObserveFanOut(recipients int) {
	if m == nil {
		return
	}
	m.fanOutTotal.Inc()
	m.fanOutSize.Observe(float64(recipients))
}

// ObserveUpload records a material upload by type.
func (m *MetricsService) ObserveUpload(materialType string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(materialType).Inc()
}

// ObserveEmailEnqueued records an email handed to the delivery queue.
func (m *MetricsService) ObserveEmailEnqueued() {
	if m == nil {
		return
	}
	m.emailsEnqueued.Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
