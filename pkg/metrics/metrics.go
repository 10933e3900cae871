// Package metrics exposes the sampler's own health as Prometheus
// instruments. All methods are safe on a nil *Metrics so callers may run
// without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ja7ad/procwatch/pkg/system/proc"
)

const namespace = "procwatch"

type Metrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	ioErrors      prometheus.Counter
	skippedTicks  prometheus.Counter
	skippedProcs  *prometheus.CounterVec
	processes     prometheus.Gauge
	alerts        *prometheus.CounterVec
	activeAlerts  prometheus.Gauge
	droppedEvents prometheus.Counter
	profileSwaps  prometheus.Counter
}

// New registers every instrument on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "cycles_total",
			Help:      "Completed sampling cycles.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one read, merge and evaluate cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ioErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "io_errors_total",
			Help:      "Cycles aborted because the process listing could not be read.",
		}),
		skippedTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "skipped_ticks_total",
			Help:      "Ticks dropped because the previous cycle overran the interval.",
		}),
		skippedProcs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reader",
			Name:      "skipped_processes_total",
			Help:      "Processes left out of a snapshot, by reason.",
		}, []string{"reason"}),
		processes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "table",
			Name:      "processes",
			Help:      "Processes in the latest published table.",
		}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "transitions_total",
			Help:      "Alert events emitted, by rule and kind.",
		}, []string{"rule", "kind"}),
		activeAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Currently raised alerts.",
		}),
		droppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dropped_events_total",
			Help:      "Events discarded because the pending buffer was full.",
		}),
		profileSwaps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "profile_swaps_total",
			Help:      "Accepted profile replacements.",
		}),
	}
}

func (m *Metrics) ObserveCycle(d time.Duration, processes int, skipped proc.Skipped) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.processes.Set(float64(processes))
	m.skippedProcs.WithLabelValues("gone").Add(float64(skipped.Gone))
	m.skippedProcs.WithLabelValues("denied").Add(float64(skipped.Denied))
	m.skippedProcs.WithLabelValues("malformed").Add(float64(skipped.Malformed))
}

func (m *Metrics) IOError() {
	if m == nil {
		return
	}
	m.ioErrors.Inc()
}

func (m *Metrics) SkippedTick() {
	if m == nil {
		return
	}
	m.skippedTicks.Inc()
}

// Alert counts one transition; kind is "raised" or "cleared".
func (m *Metrics) Alert(rule, kind string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(rule, kind).Inc()
}

func (m *Metrics) ActiveAlerts(n int) {
	if m == nil {
		return
	}
	m.activeAlerts.Set(float64(n))
}

func (m *Metrics) DroppedEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedEvents.Add(float64(n))
}

func (m *Metrics) ProfileSwap() {
	if m == nil {
		return
	}
	m.profileSwaps.Inc()
}
