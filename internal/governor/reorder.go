package governor

import (
	"github.com/chainsight/decisioncore/internal/classify"
	"github.com/chainsight/decisioncore/internal/signal"
)

// RankedEntity is one entry in a rule-ordered entity list handed to ASSIST
// reordering. MLScore is the model's preference; Confidence is the
// rule-based order key the list arrived sorted by.
type RankedEntity struct {
	EntityID   string         `json:"entity_id"`
	Window     signal.Window  `json:"window,omitempty"`
	Bucket     classify.State `json:"bucket"`
	Confidence float64        `json:"confidence"`
	MLScore    float64        `json:"ml_score"`
}

// ReorderAssist applies bucket-confined ML rank adjustment to a rule-ordered
// list. Entities move toward the model's preference via bounded odd-even
// transposition passes, so no entity shifts more than AssistMaxShift
// positions and none ever leaves its bucket. Outside ASSIST mode, or with
// the kill switch triggered, the input order is returned untouched.
func (g *Governor) ReorderAssist(entities []RankedEntity) []RankedEntity {
	out := make([]RankedEntity, len(entities))
	copy(out, entities)

	state := g.Snapshot()
	if state.Mode != ModeAssist || state.KillSwitch == KillSwitchTriggered {
		return out
	}

	// Work bucket by bucket over contiguous runs; entities from the same
	// bucket that arrive non-contiguously stay in their own runs, which is
	// strictly more conservative.
	start := 0
	for start < len(out) {
		end := start + 1
		for end < len(out) && out[end].Bucket == out[start].Bucket {
			end++
		}
		g.reorderRun(out[start:end])
		start = end
	}

	return out
}

// reorderRun performs maxShift odd-even transposition passes within one
// bucket run. Each pass swaps disjoint adjacent pairs only, so one pass
// moves an entity at most one position; maxShift passes bound the total
// displacement.
func (g *Governor) reorderRun(run []RankedEntity) {
	maxShift := g.cfg.AssistMaxShift
	for pass := 0; pass < maxShift; pass++ {
		for i := pass % 2; i+1 < len(run); i += 2 {
			if run[i+1].MLScore > run[i].MLScore {
				run[i], run[i+1] = run[i+1], run[i]
			}
		}
	}
}
