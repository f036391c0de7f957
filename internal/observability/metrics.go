// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/search"
	"strategy-validation-lab/internal/walkforward"
)

// Run kinds used as label values.
const (
	KindSearch      = "search"
	KindWalkForward = "walkforward"
	KindMonteCarlo  = "montecarlo"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Trial metrics
	TrialsTotal   *prometheus.CounterVec
	TrialDuration prometheus.Histogram

	// Walk-forward metrics
	WindowsTotal *prometheus.CounterVec

	// Monte Carlo metrics
	SimulationsTotal prometheus.Counter

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	ActiveRuns  *prometheus.GaugeVec

	// Storage metrics
	StoreErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_validation_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		TrialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trials_total",
			Help:      "Total number of trials recorded by status",
		}, []string{"status"}),
		TrialDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trial_duration_seconds",
			Help:      "Wall time of one trial (train and test) in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		WindowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "windows_total",
			Help:      "Total number of walk-forward windows by status",
		}, []string{"status"}),

		SimulationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "simulations_total",
			Help:      "Total number of Monte Carlo paths simulated",
		}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of runs by kind and outcome",
		}, []string{"kind", "outcome"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{0.1, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind"}),
		ActiveRuns: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "active",
			Help:      "Number of runs in progress by kind",
		}, []string{"kind"}),

		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of failed persistence calls by store",
		}, []string{"store"}),
	}
}

var (
	_ search.Observer      = (*Metrics)(nil)
	_ walkforward.Observer = (*Metrics)(nil)
)

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// TrialCompleted counts one trial and its duration.
func (m *Metrics) TrialCompleted(rec domain.TrialRecord) {
	m.TrialsTotal.WithLabelValues(string(rec.Status)).Inc()
	m.TrialDuration.Observe(rec.Duration.Seconds())
}

// WindowCompleted counts one walk-forward window.
func (m *Metrics) WindowCompleted(_ string, w domain.WindowResult) {
	m.WindowsTotal.WithLabelValues(string(w.Status)).Inc()
}

// RunStarted marks a run of kind as active and returns a function that
// records its outcome and duration.
func (m *Metrics) RunStarted(kind string) func(err error) {
	start := time.Now()
	m.ActiveRuns.WithLabelValues(kind).Inc()
	return func(err error) {
		m.ActiveRuns.WithLabelValues(kind).Dec()
		m.RunDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		m.RunsTotal.WithLabelValues(kind, Outcome(err)).Inc()
	}
}

// SimulationsCompleted counts simulated Monte Carlo paths.
func (m *Metrics) SimulationsCompleted(n int) {
	m.SimulationsTotal.Add(float64(n))
}

// StoreFailed counts a failed persistence call.
func (m *Metrics) StoreFailed(store string) {
	m.StoreErrors.WithLabelValues(store).Inc()
}

// Outcome maps a run error to its label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTotalFailure):
		return "total_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case domain.IsUsage(err):
		return "usage_error"
	default:
		return "error"
	}
}
