package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for buttond.
type Metrics struct {
	config MetricsConfig

	// Sampling metrics
	samplesTotal   *prometheus.CounterVec
	hardwareErrors *prometheus.CounterVec

	// Trigger metrics
	transitionsTotal *prometheus.CounterVec

	// Handler metrics
	handlerRuns     *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec

	// Worker metrics
	workersActive prometheus.Gauge
	reloadsTotal  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		samplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_total",
				Help:      "Total number of option samples read from devices",
			},
			[]string{"device"},
		),
		hardwareErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hardware_errors_total",
				Help:      "Total number of hardware access failures",
			},
			[]string{"device", "operation"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of detected option value transitions",
			},
			[]string{"device", "action"},
		),
		handlerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_runs_total",
				Help:      "Total number of handler invocations by outcome",
			},
			[]string{"device", "status"},
		),
		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_seconds",
				Help:      "Duration of handler process execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"device"},
		),
		workersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers_active",
				Help:      "Number of polling workers currently running",
			},
		),
		reloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of configuration reloads",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.samplesTotal,
		m.hardwareErrors,
		m.transitionsTotal,
		m.handlerRuns,
		m.handlerDuration,
		m.workersActive,
		m.reloadsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordSample increments the sample counter for a device.
func (m *Metrics) RecordSample(device string) {
	if m.registry == nil {
		return
	}
	m.samplesTotal.WithLabelValues(device).Inc()
}

// RecordHardwareError increments the hardware error counter.
func (m *Metrics) RecordHardwareError(device, operation string) {
	if m.registry == nil {
		return
	}
	m.hardwareErrors.WithLabelValues(device, operation).Inc()
}

// RecordTransition increments the transition counter for a device action.
func (m *Metrics) RecordTransition(device, action string) {
	if m.registry == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(device, action).Inc()
}

// RecordHandlerRun records a handler invocation outcome and duration.
func (m *Metrics) RecordHandlerRun(device, status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.handlerRuns.WithLabelValues(device, status).Inc()
	m.handlerDuration.WithLabelValues(device).Observe(duration.Seconds())
}

// WorkerStarted increments the active worker gauge.
func (m *Metrics) WorkerStarted() {
	if m.registry == nil {
		return
	}
	m.workersActive.Inc()
}

// WorkerStopped decrements the active worker gauge.
func (m *Metrics) WorkerStopped() {
	if m.registry == nil {
		return
	}
	m.workersActive.Dec()
}

// RecordReload increments the configuration reload counter.
func (m *Metrics) RecordReload() {
	if m.registry == nil {
		return
	}
	m.reloadsTotal.Inc()
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
