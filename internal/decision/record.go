// Package decision orchestrates one entity evaluation end to end and exports
// the result as an immutable DecisionRecord for rendering and API
// collaborators. A record is never mutated after assembly; re-evaluating an
// unchanged snapshot under unchanged governance reproduces it bit for bit.
package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/chainsight/decisioncore/internal/classify"
	"github.com/chainsight/decisioncore/internal/dislocation"
	"github.com/chainsight/decisioncore/internal/influence"
	"github.com/chainsight/decisioncore/internal/score"
	"github.com/chainsight/decisioncore/internal/signal"
)

// MLStateSummary is the governance slice attached to a record.
type MLStateSummary struct {
	Mode         string  `json:"mode"`
	KillSwitch   string  `json:"kill_switch"`
	DriftLevel   string  `json:"drift_level"`
	LastModifier float64 `json:"last_modifier"`
}

// Record is the exported decision for one entity/window. All fields are
// value types or slices the record owns; nothing aliases engine internals.
type Record struct {
	RecordID string        `json:"record_id"`
	EntityID string        `json:"entity_id"`
	Window   signal.Window `json:"window"`

	State          classify.State  `json:"state"`
	Confidence     float64         `json:"confidence"`
	BaseConfidence float64         `json:"base_confidence"`
	ScoreBreakdown score.Breakdown `json:"score_breakdown"`

	Reasons        []classify.Reason     `json:"reasons"`
	ReasonText     []string              `json:"reason_text"`
	Contradictions []dislocation.Finding `json:"contradictions"`

	TopDrivers    []influence.Contribution `json:"top_drivers"`
	Concentration influence.Concentration  `json:"concentration"`
	DriverSummary string                   `json:"driver_summary"`

	MLState MLStateSummary `json:"ml_state"`

	ConfigVersion string `json:"config_version"`
	InputHash     string `json:"input_hash"`
}

// inputDigest is the canonical serialization the input hash covers. Changing
// any field that can change the decision must change the hash.
type inputDigest struct {
	Snapshot      *signal.Snapshot      `json:"snapshot"`
	Pressure      signal.MarketPressure `json:"pressure"`
	ConfigVersion string                `json:"config_version"`
}

// hashInputs produces the deterministic digest over the evaluation inputs.
func hashInputs(snap *signal.Snapshot, pressure signal.MarketPressure, configVersion string) string {
	payload, err := json.Marshal(inputDigest{
		Snapshot:      snap,
		Pressure:      pressure,
		ConfigVersion: configVersion,
	})
	if err != nil {
		// Inputs are plain structs; Marshal cannot fail on them.
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// recordID derives a stable identifier from the input hash and the
// governance state in effect. Deterministic so idempotent re-evaluations
// produce identical records, while a governance change yields a new ID.
func recordID(inputHash string, ml MLStateSummary) string {
	payload, _ := json.Marshal(ml)
	sum := sha256.Sum256(append([]byte(inputHash), payload...))
	return "dec_" + hex.EncodeToString(sum[:8])
}
