package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep results.
const (
	SweepSucceeded = "succeeded"
	SweepFailed    = "failed"
)

// SweepMetrics times each sweep run and counts cycles skipped on the lock.
type SweepMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	skipped  prometheus.Counter
}

func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Wall time of one sweep run.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"sweep"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Sweep runs by result.",
	}, []string{"sweep", "result"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_cycles_skipped_total",
		Help: "Cycles skipped because another worker held the sweep lock.",
	})
	reg.MustRegister(duration, runs, skipped)
	return &SweepMetrics{duration: duration, runs: runs, skipped: skipped}
}

// ObserveSweep records one run of the named sweep; a non-nil err marks it failed.
func (m *SweepMetrics) ObserveSweep(sweep string, elapsed time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	sweep = normalizeLabel(sweep)
	m.duration.WithLabelValues(sweep).Observe(elapsed.Seconds())
	result := SweepSucceeded
	if err != nil {
		result = SweepFailed
	}
	m.runs.WithLabelValues(sweep, result).Inc()
}

func (m *SweepMetrics) IncSkipped() {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
