package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for reconciliation runs.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Resource metrics
	resourcesPlanned *prometheus.CounterVec
	resourcesApplied *prometheus.CounterVec

	// Daemon metrics
	commandsSubmitted *prometheus.CounterVec
	submitDuration    *prometheus.HistogramVec
	configFetches     *prometheus.CounterVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	// Drift detection metrics
	driftChecks *prometheus.CounterVec

	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// no-op collector; every recorder checks registry
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of reconcile runs started",
			},
			[]string{"target", "mode"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of reconcile runs completed",
			},
			[]string{"target", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of reconcile runs in seconds",
				Buckets:   buckets,
			},
			[]string{"target", "status"},
		),

		resourcesPlanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_planned_total",
				Help:      "Resource instances planned, by kind and operation",
			},
			[]string{"kind", "operation"},
		),
		resourcesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_applied_total",
				Help:      "Resource instances applied, by kind and result",
			},
			[]string{"kind", "status"},
		),

		commandsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_submitted_total",
				Help:      "Configuration commands submitted to the daemon shell",
			},
			[]string{"target"},
		),
		submitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submit_duration_seconds",
				Help:      "Duration of command batch submission in seconds",
				Buckets:   buckets,
			},
			[]string{"target"},
		),
		configFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_fetches_total",
				Help:      "Running configuration reads, by result",
			},
			[]string{"target", "status"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Errors by error code",
			},
			[]string{"code"},
		),

		driftChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_checks_total",
				Help:      "Drift checks, by outcome",
			},
			[]string{"target", "status"},
		),

		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active reconcile runs",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runsStarted, m.runsCompleted, m.runDuration,
		m.resourcesPlanned, m.resourcesApplied,
		m.commandsSubmitted, m.submitDuration, m.configFetches,
		m.errorsByCode, m.driftChecks, m.activeRuns,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordRunStarted records the start of a run. Mode is plan, apply or drift.
func (m *Metrics) RecordRunStarted(target, mode string) {
	if !m.enabled() {
		return
	}
	m.runsStarted.WithLabelValues(target, mode).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records the completion of a run.
func (m *Metrics) RecordRunCompleted(target, status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(target, status).Inc()
	m.runDuration.WithLabelValues(target, status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordResourcePlanned counts a planned instance.
func (m *Metrics) RecordResourcePlanned(kind, operation string) {
	if !m.enabled() {
		return
	}
	m.resourcesPlanned.WithLabelValues(kind, operation).Inc()
}

// RecordResourceApplied counts the outcome of applying one instance.
func (m *Metrics) RecordResourceApplied(kind, status string) {
	if !m.enabled() {
		return
	}
	m.resourcesApplied.WithLabelValues(kind, status).Inc()
}

// RecordSubmit records a command batch sent to the daemon.
func (m *Metrics) RecordSubmit(target string, commands int, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.commandsSubmitted.WithLabelValues(target).Add(float64(commands))
	m.submitDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordConfigFetch records a running-config read.
func (m *Metrics) RecordConfigFetch(target string, err error) {
	if !m.enabled() {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.configFetches.WithLabelValues(target, status).Inc()
}

// RecordError counts an error by code.
func (m *Metrics) RecordError(code string) {
	if !m.enabled() {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// RecordDrift records a drift check outcome.
func (m *Metrics) RecordDrift(target, status string) {
	if !m.enabled() {
		return
	}
	m.driftChecks.WithLabelValues(target, status).Inc()
}

// Registry returns the Prometheus registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes metrics on the configured address until ctx is done.
func (m *Metrics) Serve(ctx context.Context) error {
	if !m.enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())
	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
