package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics collects effect execution metrics:
//   - stateloop_effects_started_total{op}
//   - stateloop_effects_completed_total{op,outcome}
//   - stateloop_effect_duration_seconds{op}
//   - stateloop_effects_in_flight
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stateloop_effects_started_total",
			Help: "Total number of effects started, by op",
		}, []string{"op"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stateloop_effects_completed_total",
			Help: "Total number of effects that re-entered the loop, by op and outcome",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stateloop_effect_duration_seconds",
			Help:    "Effect execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stateloop_effects_in_flight",
			Help: "Current number of executing effects",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.started, m.completed, m.duration, m.inFlight)
	}
	return m
}

func (m *Metrics) effectStarted(op string) {
	if m == nil {
		return
	}
	m.started.WithLabelValues(op).Inc()
	m.inFlight.Inc()
}

func (m *Metrics) effectDone(op string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	if failed {
		outcome = outcomeError
	}
	m.completed.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	m.inFlight.Dec()
}
