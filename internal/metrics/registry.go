// Package metrics exposes Prometheus instrumentation for the decision
// engine: evaluation throughput, state distribution, dislocation findings,
// and governance activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all decision engine metrics.
type Registry struct {
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	ConfidenceLast     *prometheus.GaugeVec

	ContradictionsTotal *prometheus.CounterVec

	GovernorTransitions *prometheus.CounterVec
	KillSwitchTriggers  prometheus.Counter
	ModifiersApplied    prometheus.Counter
	ModifiersSuppressed *prometheus.CounterVec
	CurrentMode         *prometheus.GaugeVec
}

// NewRegistry creates all engine metrics, unregistered.
func NewRegistry() *Registry {
	return &Registry{
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisioncore_evaluations_total",
				Help: "Total decision evaluations by resulting state",
			},
			[]string{"state"},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "decisioncore_evaluation_duration_seconds",
				Help:    "Duration of one full entity evaluation",
				Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
			},
		),
		ConfidenceLast: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "decisioncore_confidence_last",
				Help: "Most recent confidence per entity",
			},
			[]string{"entity"},
		),
		ContradictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisioncore_contradictions_total",
				Help: "Dislocation findings by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		GovernorTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisioncore_governor_transitions_total",
				Help: "Governance mode transitions by source and target mode",
			},
			[]string{"from", "to"},
		),
		KillSwitchTriggers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decisioncore_kill_switch_triggers_total",
				Help: "Kill switch trigger count, manual and automatic",
			},
		),
		ModifiersApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decisioncore_ml_modifiers_applied_total",
				Help: "ML confidence modifiers applied within the safety band",
			},
		),
		ModifiersSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decisioncore_ml_modifiers_suppressed_total",
				Help: "ML confidence modifiers suppressed, by reason",
			},
			[]string{"reason"},
		),
		CurrentMode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "decisioncore_governor_mode",
				Help: "Current governance mode as a one-hot gauge",
			},
			[]string{"mode"},
		),
	}
}

// Register registers every metric on the given registerer.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.EvaluationsTotal,
		r.EvaluationDuration,
		r.ConfidenceLast,
		r.ContradictionsTotal,
		r.GovernorTransitions,
		r.KillSwitchTriggers,
		r.ModifiersApplied,
		r.ModifiersSuppressed,
		r.CurrentMode,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SetMode flips the one-hot mode gauge.
func (r *Registry) SetMode(mode string) {
	for _, m := range []string{"OFF", "ADVISOR", "ASSIST"} {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		r.CurrentMode.WithLabelValues(m).Set(v)
	}
}
