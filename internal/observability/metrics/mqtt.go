package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the broker connection and result publishing.
type MQTTMetrics struct {
	connected      prometheus.Gauge
	lastConnect    prometheus.Gauge
	delivered      prometheus.Counter
	failures       *prometheus.CounterVec
	payloadBytes   prometheus.Histogram
	publishSeconds prometheus.Histogram
}

// NewMQTTMetrics registers the MQTT collectors on registry.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imageclassifier_mqtt_connection_status",
			Help: "1 while connected to the MQTT broker, 0 otherwise",
		}),
		lastConnect: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imageclassifier_mqtt_last_connect_time_seconds",
			Help: "Unix time of the last successful MQTT connection",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imageclassifier_mqtt_messages_delivered_total",
			Help: "Classification results delivered to the broker",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageclassifier_mqtt_errors_total",
			Help: "MQTT failures by operation",
		}, []string{"operation"}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imageclassifier_mqtt_message_size_bytes",
			Help:    "Size of published result payloads",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10), // 64B to 32KiB
		}),
		publishSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imageclassifier_mqtt_publish_latency_seconds",
			Help:    "Time from publish to broker acknowledgement",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus sets the connection gauge. A successful connect
// also stamps the last connect time.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if !connected {
		m.connected.Set(0)
		return
	}
	m.connected.Set(1)
	m.lastConnect.SetToCurrentTime()
}

// RecordPublish counts one delivered payload.
func (m *MQTTMetrics) RecordPublish(size int, latency time.Duration) {
	m.delivered.Inc()
	m.payloadBytes.Observe(float64(size))
	m.publishSeconds.Observe(latency.Seconds())
}

// RecordError counts a failure of operation, e.g. "connect" or "publish".
func (m *MQTTMetrics) RecordError(operation string) {
	m.failures.WithLabelValues(operation).Inc()
}

func (m *MQTTMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.connected, m.lastConnect, m.delivered,
		m.failures, m.payloadBytes, m.publishSeconds,
	}
}

// Describe implements prometheus.Collector.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
