// Package observability provides logging and Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Operation metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BytesTransferred  *prometheus.CounterVec

	// Buffer metrics
	BufferLength   prometheus.Gauge
	BufferCapacity prometheus.Gauge
	Resets         prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rwbuffer_operations_total",
				Help: "Total number of dispatched buffer operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rwbuffer_operation_duration_seconds",
				Help:    "Duration of buffer operations including lock wait",
				Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.1},
			},
			[]string{"operation"},
		),
		BytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rwbuffer_bytes_total",
				Help: "Total number of bytes copied out of or into the buffer",
			},
			[]string{"operation"},
		),
		BufferLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rwbuffer_length_bytes",
				Help: "Valid length of the shared buffer after the last write or reset",
			},
		),
		BufferCapacity: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rwbuffer_capacity_bytes",
				Help: "Fixed capacity of the shared buffer",
			},
		),
		Resets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rwbuffer_resets_total",
				Help: "Total number of buffer resets",
			},
		),
	}
}

// IncOperations increments the operations counter.
func (m *Metrics) IncOperations(operation, status string) {
	m.Operations.WithLabelValues(operation, status).Inc()
}

// ObserveOperationDuration observes operation duration in seconds.
func (m *Metrics) ObserveOperationDuration(operation string, duration float64) {
	m.OperationDuration.WithLabelValues(operation).Observe(duration)
}

// AddBytes adds n to the bytes counter of operation.
func (m *Metrics) AddBytes(operation string, n int) {
	m.BytesTransferred.WithLabelValues(operation).Add(float64(n))
}

// SetBufferLength sets the buffer length gauge.
func (m *Metrics) SetBufferLength(length int) {
	m.BufferLength.Set(float64(length))
}

// SetBufferCapacity sets the buffer capacity gauge.
func (m *Metrics) SetBufferCapacity(capacity int) {
	m.BufferCapacity.Set(float64(capacity))
}

// IncResets increments the resets counter.
func (m *Metrics) IncResets() {
	m.Resets.Inc()
}
