package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects dispatch loop metrics:
//   - stateloop_messages_processed_total
//   - stateloop_update_duration_seconds
//   - stateloop_queue_depth
//   - stateloop_defects_total{code}
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	processed  prometheus.Counter
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
	defects    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stateloop_messages_processed_total",
			Help: "Total number of messages passed through update",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stateloop_update_duration_seconds",
			Help:    "Time spent in update per message",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stateloop_queue_depth",
			Help: "Messages waiting for the dispatch loop",
		}),
		defects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stateloop_defects_total",
			Help: "Defects that stopped the dispatch loop, by code",
		}, []string{"code"}),
	}
	if reg != nil {
		reg.MustRegister(m.processed, m.duration, m.queueDepth, m.defects)
	}
	return m
}

func (m *Metrics) stepDone(elapsed time.Duration, queued int) {
	if m == nil {
		return
	}
	m.processed.Inc()
	m.duration.Observe(elapsed.Seconds())
	m.queueDepth.Set(float64(queued))
}

func (m *Metrics) defect(code DefectCode) {
	if m == nil {
		return
	}
	m.defects.WithLabelValues(string(code)).Inc()
}
