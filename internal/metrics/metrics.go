// Package metrics exposes pipeline counters on a private registry. Runs are
// short-lived, so the registry is exported as a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	Registry *prometheus.Registry

	EventsTotal          *prometheus.CounterVec
	InterruptsFired      prometheus.Counter
	InterruptsSuppressed prometheus.Counter
	PromotionsTotal      prometheus.Counter
	AlertFailures        prometheus.Counter
	GateTripped          prometheus.Gauge
	LastRunTimestamp     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		EventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgate_events_total",
				Help: "Events classified, by final state",
			},
			[]string{"state"},
		),
		InterruptsFired: f.NewCounter(prometheus.CounterOpts{
			Name: "signalgate_interrupts_fired_total",
			Help: "Interrupts that passed the gate",
		}),
		InterruptsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "signalgate_interrupts_suppressed_total",
			Help: "Interrupts blocked by a tripped gate",
		}),
		PromotionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "signalgate_promotions_total",
			Help: "Tentative events promoted by multi-source corroboration",
		}),
		AlertFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "signalgate_alert_failures_total",
			Help: "Webhook alert deliveries that failed",
		}),
		GateTripped: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalgate_gate_tripped",
			Help: "1 when the circuit breaker is tripped",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalgate_last_run_timestamp_seconds",
			Help: "Unix time of the last pipeline run",
		}),
	}
}

// ObserveGate sets the tripped gauge.
func (m *Metrics) ObserveGate(tripped bool) {
	if m == nil {
		return
	}
	if tripped {
		m.GateTripped.Set(1)
	} else {
		m.GateTripped.Set(0)
	}
}

// MarkRun records the run time.
func (m *Metrics) MarkRun(now time.Time) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(float64(now.Unix()))
}

// WriteTextfile writes the registry to path atomically in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
