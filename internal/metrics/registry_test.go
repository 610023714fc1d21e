package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsight/decisioncore/internal/audit"
)

func TestRegistry_RegistersCleanly(t *testing.T) {
	reg := NewRegistry()
	prom := prometheus.NewRegistry()

	require.NoError(t, reg.Register(prom))

	// Double registration must surface the prometheus error, not panic.
	assert.Error(t, reg.Register(prom))
}

func TestRegistry_CountersAccumulate(t *testing.T) {
	reg := NewRegistry()
	prom := prometheus.NewRegistry()
	require.NoError(t, reg.Register(prom))

	reg.EvaluationsTotal.WithLabelValues("bullish").Inc()
	reg.EvaluationsTotal.WithLabelValues("bullish").Inc()
	reg.EvaluationsTotal.WithLabelValues("risky").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.EvaluationsTotal.WithLabelValues("bullish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.EvaluationsTotal.WithLabelValues("risky")))
}

func TestRegistry_ModeGaugeIsOneHot(t *testing.T) {
	reg := NewRegistry()
	prom := prometheus.NewRegistry()
	require.NoError(t, reg.Register(prom))

	reg.SetMode("ADVISOR")
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.CurrentMode.WithLabelValues("OFF")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CurrentMode.WithLabelValues("ADVISOR")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.CurrentMode.WithLabelValues("ASSIST")))

	reg.SetMode("OFF")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CurrentMode.WithLabelValues("OFF")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.CurrentMode.WithLabelValues("ADVISOR")))
}

func TestAuditSink_CountsGovernanceEvents(t *testing.T) {
	reg := NewRegistry()
	prom := prometheus.NewRegistry()
	require.NoError(t, reg.Register(prom))

	trail := audit.NewTrail(reg.AuditSink())

	trail.Append(audit.Entry{Kind: audit.KindModeTransition, FromMode: "OFF", ToMode: "ADVISOR"})
	trail.Append(audit.Entry{Kind: audit.KindModeTransition, FromMode: "ADVISOR", ToMode: "ASSIST"})
	trail.Append(audit.Entry{Kind: audit.KindKillSwitchTrigger, FromMode: "ASSIST", ToMode: "OFF"})
	// Entries the sink does not track leave the counters alone.
	trail.Append(audit.Entry{Kind: audit.KindModifierApplied})
	trail.Append(audit.Entry{Kind: audit.KindGateEvaluation})

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.GovernorTransitions.WithLabelValues("OFF", "ADVISOR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.GovernorTransitions.WithLabelValues("ADVISOR", "ASSIST")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.GovernorTransitions.WithLabelValues("ASSIST", "OFF")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.KillSwitchTriggers))

	// The kill switch trigger drives the one-hot mode gauge back to OFF.
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CurrentMode.WithLabelValues("OFF")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.CurrentMode.WithLabelValues("ASSIST")))
}
