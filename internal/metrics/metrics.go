// Package metrics exposes Prometheus collectors for test runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/antmicro/warp-pipe/internal/model"
)

const Namespace = "warppipe"

// Metrics holds the collectors of one supervisor. The zero value and a nil
// *Metrics record nothing.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	processesLeaked   prometheus.Counter
	auxiliaryFailures prometheus.Counter
	harnessFaults     *prometheus.CounterVec
	runsInFlight      prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Count of finished test runs by harness and verdict",
		}, []string{
			"harness",
			"verdict",
		}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of test runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{
			"harness",
		}),
		processesLeaked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "processes_leaked_total",
			Help:      "Count of primary processes that survived termination",
		}),
		auxiliaryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auxiliary_stop_failures_total",
			Help:      "Count of auxiliary processes that could not be reaped",
		}),
		harnessFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "harness_faults_total",
			Help:      "Count of harness panics caught while pumping output",
		}, []string{
			"harness",
		}),
		runsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "runs_in_flight",
			Help:      "Number of runs currently supervised",
		}),
	}
}

// RunStarted marks a run as in flight.
func (m *Metrics) RunStarted() {
	if m == nil || m.runsInFlight == nil {
		return
	}
	m.runsInFlight.Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(harness model.HarnessKind, verdict model.Verdict, elapsed time.Duration) {
	if m == nil || m.runsTotal == nil {
		return
	}
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(string(harness), verdict.String()).Inc()
	m.runDuration.WithLabelValues(string(harness)).Observe(elapsed.Seconds())
}

// RecordLeak counts a primary process that could not be confirmed dead.
func (m *Metrics) RecordLeak() {
	if m == nil || m.processesLeaked == nil {
		return
	}
	m.processesLeaked.Inc()
}

// RecordAuxiliaryFailure counts an auxiliary process that failed to stop.
func (m *Metrics) RecordAuxiliaryFailure() {
	if m == nil || m.auxiliaryFailures == nil {
		return
	}
	m.auxiliaryFailures.Inc()
}

// RecordHarnessFault counts a harness panic.
func (m *Metrics) RecordHarnessFault(harness model.HarnessKind) {
	if m == nil || m.harnessFaults == nil {
		return
	}
	m.harnessFaults.WithLabelValues(string(harness)).Inc()
}
