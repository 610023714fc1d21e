// Package classify maps aggregated signals to a discrete market state and a
// deterministic set of templated reasons. No free text and no randomness:
// the same snapshot always classifies and explains identically.
package classify

import (
	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/signal"
)

// State is the discrete market classification bucket.
type State string

const (
	StateBullish State = "bullish"
	StateNeutral State = "neutral"
	StateRisky   State = "risky"
)

// maxReasons is the fixed cap on reasons attached to a classification.
const maxReasons = 3

// Classification is the classifier output: the state plus up to three
// structured reasons ordered by driver dominance.
type Classification struct {
	State   State    `json:"state"`
	Reasons []Reason `json:"reasons"`
}

// Classifier applies the precedence-ordered state rules.
type Classifier struct {
	cfg config.ClassificationConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.ClassificationConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify evaluates the state rules in precedence order and derives the top
// reasons from the dominant numeric drivers.
//
// Precedence: bullish requires strong accumulation AND strong inflows; risky
// fires on strong distribution OR heavy outflows; everything else is neutral.
func (c *Classifier) Classify(snap *signal.Snapshot, insufficientData bool) Classification {
	if insufficientData {
		return Classification{
			State:   StateNeutral,
			Reasons: []Reason{{Kind: ReasonInsufficientData}},
		}
	}

	accum := float64(snap.Accumulating)
	distrib := float64(snap.Distributing)

	var state State
	switch {
	case accum > c.cfg.BullishAccumRatio*distrib && snap.NetFlowUSD > c.cfg.BullishNetFlowUSD:
		state = StateBullish
	case distrib > c.cfg.RiskyDistributeRatio*accum || snap.NetFlowUSD < c.cfg.RiskyNetFlowUSD:
		state = StateRisky
	default:
		state = StateNeutral
	}

	return Classification{
		State:   state,
		Reasons: c.reasons(snap, state),
	}
}

// driver is an internal candidate reason scored by how strongly its metric
// deviates from neutral. Candidates are ranked and the top three surface.
type driver struct {
	reason   Reason
	strength float64
}

func (c *Classifier) reasons(snap *signal.Snapshot, state State) []Reason {
	accum := float64(snap.Accumulating)
	distrib := float64(snap.Distributing)

	candidates := make([]driver, 0, 3)

	// Smart money ratio driver: distance of the accumulation share from the
	// 0.5 neutral midpoint.
	if accum+distrib > 0 {
		share := accum / (accum + distrib)
		candidates = append(candidates, driver{
			reason: Reason{
				Kind:         ReasonSmartMoneyRatio,
				Accumulating: snap.Accumulating,
				Distributing: snap.Distributing,
			},
			strength: abs(share - 0.5),
		})
	}

	// Net flow driver: magnitude relative to the bullish flow threshold.
	if snap.NetFlowUSD != 0 {
		candidates = append(candidates, driver{
			reason: Reason{
				Kind:       ReasonNetFlow,
				NetFlowUSD: snap.NetFlowUSD,
			},
			strength: abs(snap.NetFlowUSD) / c.cfg.BullishNetFlowUSD,
		})
	}

	// New positions driver: raw count, saturating at four positions so it
	// competes on even footing with the ratio drivers.
	if snap.NewPositions > 0 {
		candidates = append(candidates, driver{
			reason: Reason{
				Kind:         ReasonNewPositions,
				NewPositions: snap.NewPositions,
			},
			strength: minf(float64(snap.NewPositions)/4.0, 1.0),
		})
	}

	if len(candidates) == 0 {
		return []Reason{{Kind: ReasonInsufficientData}}
	}

	// Stable selection sort, descending by strength. Candidate order above is
	// fixed, so ties resolve deterministically.
	for i := 0; i < len(candidates); i++ {
		best := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].strength > candidates[best].strength {
				best = j
			}
		}
		candidates[i], candidates[best] = candidates[best], candidates[i]
	}

	n := len(candidates)
	if n > maxReasons {
		n = maxReasons
	}
	reasons := make([]Reason, 0, n)
	for _, cand := range candidates[:n] {
		r := cand.reason
		r.State = state
		reasons = append(reasons, r)
	}
	return reasons
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
