// Package governor gates whether, and by how much, ML-derived output may
// influence the rule-based decision pipeline. It owns the only shared
// mutable state in the engine: a mode/kill-switch state machine whose every
// transition is serialized through one writer and recorded on an append-only
// audit trail.
package governor

import (
	"time"
)

// Mode is the ML influence level.
type Mode string

const (
	// ModeOff disables ML influence entirely. Process start state.
	ModeOff Mode = "OFF"
	// ModeAdvisor permits bounded confidence modifiers only.
	ModeAdvisor Mode = "ADVISOR"
	// ModeAssist additionally permits bucket-confined rank adjustments.
	ModeAssist Mode = "ASSIST"
)

// KillSwitch is the unconditional safety override axis.
type KillSwitch string

const (
	KillSwitchArmed     KillSwitch = "ARMED"
	KillSwitchTriggered KillSwitch = "TRIGGERED"
)

// DriftLevel grades measured deviation of live data from the distribution
// the model was validated on.
type DriftLevel string

const (
	DriftLow      DriftLevel = "LOW"
	DriftMedium   DriftLevel = "MEDIUM"
	DriftHigh     DriftLevel = "HIGH"
	DriftCritical DriftLevel = "CRITICAL"
)

// Readiness gate names. All must hold before any mode upgrade.
const (
	GateCoverage     = "coverage"
	GateDataset      = "dataset"
	GateModelQuality = "model_quality"
	GateDrift        = "drift"
	GateShadow       = "shadow"
)

// GateNames lists every readiness gate in evaluation order.
var GateNames = []string{GateCoverage, GateDataset, GateModelQuality, GateDrift, GateShadow}

// State is one immutable snapshot of the governance state machine. Mutation
// happens only through the governor's transition methods; callers receive
// copies.
type State struct {
	Mode       Mode       `json:"mode"`
	KillSwitch KillSwitch `json:"kill_switch"`
	DriftLevel DriftLevel `json:"drift_level"`

	// SafetyGates holds the latest readiness gate evaluation. GatesFresh is
	// cleared by a kill-switch reset: a stale evaluation cannot authorize an
	// upgrade.
	SafetyGates map[string]bool `json:"safety_gates"`
	GatesFresh  bool            `json:"gates_fresh"`

	LastModifier       float64 `json:"last_modifier"`
	LastModifierModel  string  `json:"last_modifier_model,omitempty"`
	LastRollbackReason string  `json:"last_rollback_reason,omitempty"`

	// LastShadowVerdict caches the most recent shadow evaluation outcome
	// used for upgrade and rollback decisions.
	LastShadowVerdict string  `json:"last_shadow_verdict,omitempty"`
	LastPrecisionLift float64 `json:"last_precision_lift"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns the process start state: OFF, ARMED, LOW drift, no gates
// evaluated.
func NewState() State {
	return State{
		Mode:        ModeOff,
		KillSwitch:  KillSwitchArmed,
		DriftLevel:  DriftLow,
		SafetyGates: map[string]bool{},
	}
}

// clone deep-copies the state so snapshots never alias the live gate map.
func (s State) clone() State {
	out := s
	out.SafetyGates = make(map[string]bool, len(s.SafetyGates))
	for k, v := range s.SafetyGates {
		out.SafetyGates[k] = v
	}
	return out
}

// AllGatesPassed reports whether every named readiness gate held in the
// latest evaluation.
func (s State) AllGatesPassed() bool {
	if len(s.SafetyGates) == 0 {
		return false
	}
	for _, name := range GateNames {
		if !s.SafetyGates[name] {
			return false
		}
	}
	return true
}

// MLActive reports whether any ML influence is currently permitted.
func (s State) MLActive() bool {
	return s.KillSwitch == KillSwitchArmed && s.Mode != ModeOff
}
