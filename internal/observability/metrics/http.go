package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tphakala/imageclassifier/internal/logger"
)

// HTTPMetrics contains Prometheus metrics for the HTTP API
type HTTPMetrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
	requestsInFlight prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	uploadSize       prometheus.Histogram
}

// NewHTTPMetrics creates and registers new HTTP metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, not the raw URL
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imageclassifier_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_http_request_errors_total",
			Help: "Total number of HTTP request errors",
		},
		[]string{"method", "path", "error_type"}, // error_type: validation, decode, timeout, system
	)

	m.requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "imageclassifier_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served",
	})

	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_http_cache_lookups_total",
			Help: "Classification result cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	m.uploadSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "imageclassifier_http_upload_size_bytes",
		Help:    "Size of uploaded images in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KB to 16MB
	})
}

func (m *HTTPMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.requestErrors,
		m.requestsInFlight,
		m.cacheLookups,
		m.uploadSize,
	}
}

// Describe implements the prometheus.Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordHTTPRequest records a finished request
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordHTTPRequestError records a request error
func (m *HTTPMetrics) RecordHTTPRequestError(method, path, errorType string) {
	m.requestErrors.WithLabelValues(method, path, errorType).Inc()
}

// RequestStarted increments the in-flight gauge
func (m *HTTPMetrics) RequestStarted() {
	m.requestsInFlight.Inc()
}

// RequestFinished decrements the in-flight gauge
func (m *HTTPMetrics) RequestFinished() {
	m.requestsInFlight.Dec()
}

// RecordCacheLookup records a result cache hit or miss
func (m *HTTPMetrics) RecordCacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordUploadSize records the size of an uploaded image
func (m *HTTPMetrics) RecordUploadSize(size int64) {
	m.uploadSize.Observe(float64(size))
}

// InFlightRequests returns the current value of the in-flight gauge
func (m *HTTPMetrics) InFlightRequests() float64 {
	metric := &dto.Metric{}
	if err := m.requestsInFlight.Write(metric); err != nil {
		GetLogger().Warn("Failed to read in-flight requests metric", logger.Error(err))
		return 0
	}
	return metric.GetGauge().GetValue()
}
