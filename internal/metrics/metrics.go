// Package metrics exports compile and live-update counters to Prometheus.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shadergraph"

// Metrics holds the collectors of one registry. It satisfies
// shadergraph.Metrics.
type Metrics struct {
	compiles        *prometheus.CounterVec
	compileDuration prometheus.Histogram
	passes          prometheus.Histogram
	messages        *prometheus.CounterVec
	dropped         prometheus.Counter
	lastDropped     atomic.Uint64
	rebuilds        prometheus.Counter
	sessions        prometheus.Gauge
}

// New registers the collectors with reg. Use prometheus.DefaultRegisterer
// for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		compiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compiles_total",
			Help:      "Scene compiles by result; result is ok or the error kind.",
		}, []string{"result"}),
		compileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Wall time of one scene compile.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		passes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_passes",
			Help:      "Render passes per successfully compiled plan.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_messages_total",
			Help:      "Live-update messages received, by type.",
		}, []string{"type"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_superseded_total",
			Help:      "Queued scenes replaced by a newer one before compiling.",
		}),
		rebuilds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_rebuilds_total",
			Help:      "Compiles whose signature required new GPU pipelines.",
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Open live-update websocket sessions.",
		}),
	}
}

// ObserveCompile records one compile. kind is empty on success.
func (m *Metrics) ObserveCompile(d time.Duration, passes int, kind string) {
	m.compileDuration.Observe(d.Seconds())
	if kind == "" {
		m.compiles.WithLabelValues("ok").Inc()
		m.passes.Observe(float64(passes))
		return
	}
	m.compiles.WithLabelValues(kind).Inc()
}

// ObserveMessage counts a received live message of type typ.
func (m *Metrics) ObserveMessage(typ string) {
	m.messages.WithLabelValues(typ).Inc()
}

// SetSuperseded raises the superseded counter to total, the running count
// reported by the driver. Totals lower than a previous report are ignored.
func (m *Metrics) SetSuperseded(total uint64) {
	for {
		last := m.lastDropped.Load()
		if total <= last {
			return
		}
		if m.lastDropped.CompareAndSwap(last, total) {
			m.dropped.Add(float64(total - last))
			return
		}
	}
}

// ObserveRebuild counts a pipeline rebuild.
func (m *Metrics) ObserveRebuild() { m.rebuilds.Inc() }

// SessionOpened increments the open session gauge.
func (m *Metrics) SessionOpened() { m.sessions.Inc() }

// SessionClosed decrements the open session gauge.
func (m *Metrics) SessionClosed() { m.sessions.Dec() }
