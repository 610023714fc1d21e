package metrics

import (
	"github.com/chainsight/decisioncore/internal/audit"
)

// AuditSink maps committed audit entries onto the governance counters, so
// the metrics track the trail rather than requiring the governor to know
// about instrumentation. Attach it to the trail with audit.NewTrail.
type AuditSink struct {
	reg *Registry
}

// AuditSink returns a sink that feeds governance events into this registry.
func (r *Registry) AuditSink() *AuditSink {
	return &AuditSink{reg: r}
}

// Publish implements audit.Sink.
func (s *AuditSink) Publish(entry audit.Entry) {
	switch entry.Kind {
	case audit.KindModeTransition:
		s.reg.GovernorTransitions.WithLabelValues(entry.FromMode, entry.ToMode).Inc()
		s.reg.SetMode(entry.ToMode)
	case audit.KindKillSwitchTrigger:
		s.reg.KillSwitchTriggers.Inc()
		// A trigger forces the mode off as part of the same transition.
		s.reg.GovernorTransitions.WithLabelValues(entry.FromMode, entry.ToMode).Inc()
		s.reg.SetMode(entry.ToMode)
	}
}

var _ audit.Sink = (*AuditSink)(nil)
