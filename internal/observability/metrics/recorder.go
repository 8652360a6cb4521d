// Package metrics provides Prometheus instrumentation for the processing
// graph, the action-driver subsystem, and the audio frame bus. Every
// component that wants to be instrumented depends only on the Recorder
// interface, never on a concrete Prometheus type. TestRecorder and
// NoOpRecorder are defined in recorder_test.go, so they are compiled only
// into this package's own tests.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the minimal metrics surface a component needs: counts of
// operations by outcome, duration samples, and error counts by type.
type Recorder interface {
	RecordOperation(operation, status string)
	RecordDuration(operation string, seconds float64)
	RecordError(operation, errorType string)
}

// GraphMetrics instruments the processing graph: node executions, per-node
// latency, and node-level errors, labeled by node ID or node type.
type GraphMetrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec

	initOnce sync.Once
}

// NewGraphMetrics creates and registers graph metrics against registry.
// If registry is nil, prometheus.NewRegistry() is used.
func NewGraphMetrics(registry *prometheus.Registry) (*GraphMetrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &GraphMetrics{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoacoustic_graph_operations_total",
			Help: "Total number of processing graph node executions by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "photoacoustic_graph_operation_duration_seconds",
			Help:    "Duration of processing graph node executions in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoacoustic_graph_errors_total",
			Help: "Total number of processing graph node errors by error type.",
		}, []string{"operation", "error_type"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.durations, m.errors} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *GraphMetrics) RecordOperation(operation, status string) {
	m.operations.WithLabelValues(operation, status).Inc()
}

func (m *GraphMetrics) RecordDuration(operation string, seconds float64) {
	m.durations.WithLabelValues(operation).Observe(seconds)
}

func (m *GraphMetrics) RecordError(operation, errorType string) {
	m.errors.WithLabelValues(operation, errorType).Inc()
}

// ActionMetrics instruments the action-driver subsystem: delivery attempts,
// delivery latency, and delivery errors, labeled by driver type.
type ActionMetrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// NewActionMetrics creates and registers action-driver metrics against
// registry. If registry is nil, prometheus.NewRegistry() is used.
func NewActionMetrics(registry *prometheus.Registry) (*ActionMetrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &ActionMetrics{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoacoustic_action_operations_total",
			Help: "Total number of action driver deliveries by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "photoacoustic_action_delivery_duration_seconds",
			Help:    "Duration of action driver deliveries in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoacoustic_action_errors_total",
			Help: "Total number of action driver delivery errors by error type.",
		}, []string{"operation", "error_type"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.durations, m.errors} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *ActionMetrics) RecordOperation(operation, status string) {
	m.operations.WithLabelValues(operation, status).Inc()
}

func (m *ActionMetrics) RecordDuration(operation string, seconds float64) {
	m.durations.WithLabelValues(operation).Observe(seconds)
}

func (m *ActionMetrics) RecordError(operation, errorType string) {
	m.errors.WithLabelValues(operation, errorType).Inc()
}
