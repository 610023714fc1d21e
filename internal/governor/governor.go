package governor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsight/decisioncore/internal/audit"
	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/mlclient"
)

var (
	// ErrStateChanged reports that a concurrent transition won; the caller
	// must re-read the state and decide again.
	ErrStateChanged = errors.New("governance state already changed")
	// ErrGatesNotSatisfied reports a mode upgrade attempted without a fresh,
	// fully passing readiness gate evaluation.
	ErrGatesNotSatisfied = errors.New("readiness gates not satisfied")
	// ErrApprovalRequired reports a mode upgrade attempted without a
	// recorded operator approval.
	ErrApprovalRequired = errors.New("manual approval required")
	// ErrInvalidTransition reports a target mode unreachable from the
	// current one.
	ErrInvalidTransition = errors.New("invalid mode transition")
	// ErrKillSwitchTriggered reports an operation blocked by the tripped
	// kill switch.
	ErrKillSwitchTriggered = errors.New("kill switch triggered")
)

// Approval records the operator authorization behind a manual transition.
type Approval struct {
	Actor string `json:"actor"`
	Note  string `json:"note,omitempty"`
}

// ModifierOutcome describes what happened to one proposed confidence
// modifier.
type ModifierOutcome struct {
	Applied    bool    `json:"applied"`
	Base       float64 `json:"base"`
	Final      float64 `json:"final"`
	Modifier   float64 `json:"modifier"`
	ModelID    string  `json:"model_id,omitempty"`
	Suppressed string  `json:"suppressed_reason,omitempty"`
}

// Governor serializes every governance transition through a single writer
// and publishes lock-free state snapshots for the evaluation path.
type Governor struct {
	mu    sync.Mutex
	state atomic.Pointer[State]
	trail *audit.Trail
	cfg   config.GovernorConfig
	now   func() time.Time
}

// New creates a governor in the process start state {OFF, ARMED, LOW}.
func New(cfg config.GovernorConfig, trail *audit.Trail) *Governor {
	g := &Governor{
		trail: trail,
		cfg:   cfg,
		now:   time.Now,
	}
	initial := NewState()
	g.state.Store(&initial)
	return g
}

// Snapshot returns the current state without taking the writer lock.
func (g *Governor) Snapshot() State {
	return g.state.Load().clone()
}

// commit stores the new state and appends the transition to the trail. The
// caller holds the writer lock.
func (g *Governor) commit(next State, entry audit.Entry) State {
	next.UpdatedAt = g.now().UTC()
	stored := next.clone()
	g.state.Store(&stored)
	g.trail.Append(entry)
	return next.clone()
}

// SetMode requests a manual mode change. Upgrades demand a fresh all-pass
// gate evaluation plus approval; ADVISOR→ASSIST additionally demands a
// shadow verdict of outperformance. Downgrades need approval only.
func (g *Governor) SetMode(target Mode, approval Approval) (State, error) {
	if approval.Actor == "" {
		return g.Snapshot(), ErrApprovalRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.state.Load().clone()

	if cur.Mode == target {
		return cur, fmt.Errorf("%w: mode already %s", ErrStateChanged, target)
	}
	if cur.KillSwitch == KillSwitchTriggered && target != ModeOff {
		g.trail.Append(audit.Entry{
			Kind:       audit.KindRejectedTransition,
			Actor:      approval.Actor,
			FromMode:   string(cur.Mode),
			ToMode:     string(target),
			KillSwitch: string(cur.KillSwitch),
			Reason:     "kill switch triggered",
		})
		return cur, ErrKillSwitchTriggered
	}

	switch target {
	case ModeOff:
		// Always reachable manually.
	case ModeAdvisor:
		if cur.Mode != ModeOff {
			return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Mode, target)
		}
		if !cur.GatesFresh || !cur.AllGatesPassed() {
			return cur, ErrGatesNotSatisfied
		}
	case ModeAssist:
		if cur.Mode != ModeAdvisor {
			return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Mode, target)
		}
		if !cur.GatesFresh || !cur.AllGatesPassed() {
			return cur, ErrGatesNotSatisfied
		}
		if cur.LastShadowVerdict != mlclient.VerdictOutperform || cur.LastPrecisionLift <= 0 {
			return cur, fmt.Errorf("%w: shadow verdict %q with lift %.4f",
				ErrGatesNotSatisfied, cur.LastShadowVerdict, cur.LastPrecisionLift)
		}
	default:
		return cur, fmt.Errorf("%w: unknown mode %q", ErrInvalidTransition, target)
	}

	next := cur.clone()
	next.Mode = target

	return g.commit(next, audit.Entry{
		Kind:       audit.KindModeTransition,
		Actor:      approval.Actor,
		FromMode:   string(cur.Mode),
		ToMode:     string(target),
		KillSwitch: string(next.KillSwitch),
		DriftLevel: string(next.DriftLevel),
		Reason:     approval.Note,
	}), nil
}

// TriggerKillSwitch trips the kill switch and forces the mode to OFF in the
// same transition. A second trigger loses with ErrStateChanged.
func (g *Governor) TriggerKillSwitch(reason string, actor string) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trigger(reason, actor)
}

// trigger is the lock-held kill path shared by manual triggers and automatic
// drift/shadow rollbacks.
func (g *Governor) trigger(reason, actor string) (State, error) {
	cur := g.state.Load().clone()
	if cur.KillSwitch == KillSwitchTriggered {
		return cur, fmt.Errorf("%w: kill switch already triggered", ErrStateChanged)
	}

	next := cur.clone()
	next.KillSwitch = KillSwitchTriggered
	next.Mode = ModeOff
	next.LastRollbackReason = reason

	log.Warn().Str("reason", reason).Str("actor", actor).Msg("kill switch triggered, ML influence off")

	return g.commit(next, audit.Entry{
		Kind:       audit.KindKillSwitchTrigger,
		Actor:      actor,
		FromMode:   string(cur.Mode),
		ToMode:     string(ModeOff),
		KillSwitch: string(KillSwitchTriggered),
		DriftLevel: string(next.DriftLevel),
		Reason:     reason,
	}), nil
}

// ResetKillSwitch re-arms a triggered kill switch. Manual only; the reset
// invalidates the gate evaluation so no upgrade is possible until gates are
// re-run.
func (g *Governor) ResetKillSwitch(approval Approval) (State, error) {
	if approval.Actor == "" {
		return g.Snapshot(), ErrApprovalRequired
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.state.Load().clone()
	if cur.KillSwitch != KillSwitchTriggered {
		return cur, fmt.Errorf("%w: kill switch not triggered", ErrStateChanged)
	}

	next := cur.clone()
	next.KillSwitch = KillSwitchArmed
	next.GatesFresh = false

	return g.commit(next, audit.Entry{
		Kind:       audit.KindKillSwitchReset,
		Actor:      approval.Actor,
		KillSwitch: string(KillSwitchArmed),
		DriftLevel: string(next.DriftLevel),
		Reason:     approval.Note,
	}), nil
}

// EvaluateGates records a readiness gate evaluation and marks it fresh.
func (g *Governor) EvaluateGates(report GateReport, actor string) (State, error) {
	if err := report.Complete(); err != nil {
		return g.Snapshot(), fmt.Errorf("incomplete gate report: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.state.Load().clone()
	next := cur.clone()
	next.SafetyGates = report.passedMap()
	next.GatesFresh = true

	reason := "all gates passed"
	if failed := report.FailedGates(); len(failed) > 0 {
		reason = fmt.Sprintf("failed gates: %v", failed)
	}

	return g.commit(next, audit.Entry{
		Kind:       audit.KindGateEvaluation,
		Actor:      actor,
		KillSwitch: string(next.KillSwitch),
		DriftLevel: string(next.DriftLevel),
		Reason:     reason,
	}), nil
}

// ReportDrift records a drift measurement. CRITICAL drift trips the kill
// switch and forces OFF inside the same serialized transition.
func (g *Governor) ReportDrift(report mlclient.DriftReport) (State, error) {
	level := DriftLevel(report.Level)
	switch level {
	case DriftLow, DriftMedium, DriftHigh, DriftCritical:
	default:
		return g.Snapshot(), fmt.Errorf("unknown drift level %q", report.Level)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.state.Load().clone()
	next := cur.clone()
	next.DriftLevel = level

	if level == DriftCritical && next.KillSwitch == KillSwitchArmed {
		next.KillSwitch = KillSwitchTriggered
		next.Mode = ModeOff
		next.LastRollbackReason = "drift level critical"

		log.Warn().Float64("drift_score", report.Score).Msg("critical drift, kill switch auto-triggered")

		return g.commit(next, audit.Entry{
			Kind:       audit.KindKillSwitchTrigger,
			Actor:      "drift-monitor",
			FromMode:   string(cur.Mode),
			ToMode:     string(ModeOff),
			KillSwitch: string(KillSwitchTriggered),
			DriftLevel: string(level),
			Reason:     "drift level critical",
		}), nil
	}

	return g.commit(next, audit.Entry{
		Kind:       audit.KindGateEvaluation,
		Actor:      "drift-monitor",
		KillSwitch: string(next.KillSwitch),
		DriftLevel: string(level),
		Reason:     fmt.Sprintf("drift level %s", level),
	}), nil
}

// ReportShadow records a shadow evaluation verdict. A DEGRADED verdict past
// the rollback threshold trips the kill switch automatically.
func (g *Governor) ReportShadow(result mlclient.ShadowResult) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.state.Load().clone()
	next := cur.clone()
	next.LastShadowVerdict = result.Verdict
	next.LastPrecisionLift = result.PrecisionLift

	degradedPastThreshold := result.Verdict == mlclient.VerdictDegraded &&
		-result.PrecisionLift >= g.cfg.RollbackPrecisionDrop

	if degradedPastThreshold && next.KillSwitch == KillSwitchArmed {
		next.KillSwitch = KillSwitchTriggered
		next.Mode = ModeOff
		next.LastRollbackReason = fmt.Sprintf("shadow degraded, precision lift %.4f", result.PrecisionLift)

		return g.commit(next, audit.Entry{
			Kind:       audit.KindKillSwitchTrigger,
			Actor:      "shadow-monitor",
			FromMode:   string(cur.Mode),
			ToMode:     string(ModeOff),
			KillSwitch: string(KillSwitchTriggered),
			DriftLevel: string(next.DriftLevel),
			Reason:     next.LastRollbackReason,
		}), nil
	}

	return g.commit(next, audit.Entry{
		Kind:       audit.KindGateEvaluation,
		Actor:      "shadow-monitor",
		KillSwitch: string(next.KillSwitch),
		DriftLevel: string(next.DriftLevel),
		Reason:     fmt.Sprintf("shadow verdict %s, lift %.4f", result.Verdict, result.PrecisionLift),
	}), nil
}

// ApplyModifier resolves one proposed modifier against the current state.
// The applied adjustment is banded to ±ModifierBandPct of the base; any
// suppression is audited with its reason. Never returns an error: an
// unusable modifier passes the base through unchanged.
func (g *Governor) ApplyModifier(entityID string, base float64, mod *mlclient.Modifier) ModifierOutcome {
	state := g.Snapshot()

	suppress := func(reason string) ModifierOutcome {
		entry := audit.Entry{
			Kind:             audit.KindModifierSuppressed,
			Reason:           reason,
			ConfidenceBefore: base,
			ConfidenceAfter:  base,
		}
		if mod != nil {
			entry.Modifier = mod.Value
			entry.ModelID = mod.ModelID
		}
		g.trail.Append(entry)
		return ModifierOutcome{Base: base, Final: base, Suppressed: reason}
	}

	if state.KillSwitch == KillSwitchTriggered {
		return suppress("kill switch triggered")
	}
	if state.Mode == ModeOff {
		return suppress("mode off")
	}
	if mod == nil {
		return suppress("ml subsystem unavailable")
	}

	lo := base * (1 - g.cfg.ModifierBandPct)
	hi := base * (1 + g.cfg.ModifierBandPct)
	final := math.Min(math.Max(base+mod.Value, lo), hi)

	g.mu.Lock()
	cur := g.state.Load().clone()
	// The kill switch may have tripped, or the mode dropped to OFF, between
	// the snapshot and here; the serialized re-check keeps TRIGGERED ⇒ no
	// modifier unconditional.
	if cur.KillSwitch == KillSwitchTriggered {
		g.mu.Unlock()
		return suppress("kill switch triggered")
	}
	if cur.Mode == ModeOff {
		g.mu.Unlock()
		return suppress("mode off")
	}
	next := cur.clone()
	next.LastModifier = final - base
	next.LastModifierModel = mod.ModelID
	g.commit(next, audit.Entry{
		Kind:             audit.KindModifierApplied,
		ConfidenceBefore: base,
		ConfidenceAfter:  final,
		Modifier:         mod.Value,
		ModelID:          mod.ModelID,
	})
	g.mu.Unlock()

	return ModifierOutcome{
		Applied:  true,
		Base:     base,
		Final:    final,
		Modifier: mod.Value,
		ModelID:  mod.ModelID,
	}
}
