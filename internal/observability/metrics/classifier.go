// Package metrics provides custom Prometheus metrics for imageclassifier components.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/imageclassifier/internal/errors"
)

// ClassifierMetrics contains all Prometheus metrics related to classification.
type ClassifierMetrics struct {
	InferenceDuration *prometheus.HistogramVec
	InferenceTotal    *prometheus.CounterVec
	InferenceErrors   *prometheus.CounterVec
	StaleResults      *prometheus.CounterVec
	ModelLoaded       *prometheus.GaugeVec
	InFlight          prometheus.Gauge

	registry *prometheus.Registry
}

// NewClassifierMetrics creates a new instance of ClassifierMetrics.
// It requires a Prometheus registry to register the metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for ClassifierMetrics.
func (m *ClassifierMetrics) initMetrics() {
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imageclassifier_inference_duration_seconds",
			Help:    "Time taken by a model to classify one image",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"model"},
	)

	m.InferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_inferences_total",
			Help: "Total number of classifications partitioned by model and status",
		},
		[]string{"model", "status"},
	)

	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_inference_errors_total",
			Help: "Total number of failed classifications partitioned by error type",
		},
		[]string{"model", "error_type"},
	)

	m.StaleResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_stale_results_total",
			Help: "Results discarded because a newer request superseded them",
		},
		[]string{"model"},
	)

	m.ModelLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imageclassifier_model_loaded",
			Help: "Whether a model is loaded (1) or not (0)",
		},
		[]string{"model"},
	)

	m.InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "imageclassifier_inferences_in_flight",
			Help: "Number of classifications currently running",
		},
	)
}

// RecordInference records the outcome of one model run.
func (m *ClassifierMetrics) RecordInference(model string, duration time.Duration, err error) {
	if err != nil {
		m.InferenceTotal.WithLabelValues(model, "error").Inc()
		m.InferenceErrors.WithLabelValues(model, categorizeError(err)).Inc()
		return
	}
	m.InferenceTotal.WithLabelValues(model, "success").Inc()
	m.InferenceDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordStaleResult counts a discarded superseded result.
func (m *ClassifierMetrics) RecordStaleResult(model string) {
	m.StaleResults.WithLabelValues(model).Inc()
}

// SetInFlight sets the number of running classifications.
func (m *ClassifierMetrics) SetInFlight(n int) {
	m.InFlight.Set(float64(n))
}

// SetModelLoaded marks a model as loaded or unloaded.
func (m *ClassifierMetrics) SetModelLoaded(model string, loaded bool) {
	if loaded {
		m.ModelLoaded.WithLabelValues(model).Set(1)
	} else {
		m.ModelLoaded.WithLabelValues(model).Set(0)
	}
}

// categorizeError returns a category label for the error
func categorizeError(err error) string {
	var ee *errors.EnhancedError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded), errors.IsCategory(err, errors.CategoryTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &ee):
		return string(ee.Category)
	default:
		return "unknown"
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InferenceDuration.Describe(ch)
	m.InferenceTotal.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.StaleResults.Describe(ch)
	m.ModelLoaded.Describe(ch)
	ch <- m.InFlight.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InferenceDuration.Collect(ch)
	m.InferenceTotal.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.StaleResults.Collect(ch)
	m.ModelLoaded.Collect(ch)
	ch <- m.InFlight
}
