package classify

import (
	"testing"

	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/signal"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	return NewClassifier(config.Default().Classification)
}

func TestClassify_Precedence(t *testing.T) {
	c := newTestClassifier(t)

	testCases := []struct {
		name     string
		snap     signal.Snapshot
		expected State
	}{
		{
			name:     "bullish_accumulation_and_inflow",
			snap:     signal.Snapshot{Accumulating: 3, Distributing: 1, NetFlowUSD: 89_200_000},
			expected: StateBullish,
		},
		{
			name:     "accumulation_without_inflow_is_neutral",
			snap:     signal.Snapshot{Accumulating: 3, Distributing: 1, NetFlowUSD: 10_000_000},
			expected: StateNeutral,
		},
		{
			name:     "risky_by_distribution_ratio",
			snap:     signal.Snapshot{Accumulating: 1, Distributing: 4, NetFlowUSD: 5_000_000},
			expected: StateRisky,
		},
		{
			name:     "risky_by_outflow_alone",
			snap:     signal.Snapshot{Accumulating: 2, Distributing: 2, NetFlowUSD: -35_000_000},
			expected: StateRisky,
		},
		{
			name:     "balanced_is_neutral",
			snap:     signal.Snapshot{Accumulating: 2, Distributing: 2, NetFlowUSD: 1_000_000},
			expected: StateNeutral,
		},
		{
			name:     "ratio_exactly_at_threshold_is_not_bullish",
			snap:     signal.Snapshot{Accumulating: 3, Distributing: 2, NetFlowUSD: 60_000_000},
			expected: StateNeutral,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(&tc.snap, false)
			if got.State != tc.expected {
				t.Errorf("expected state %s, got %s", tc.expected, got.State)
			}
		})
	}
}

func TestClassify_InsufficientDataDefaultsNeutral(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(&signal.Snapshot{}, true)
	if got.State != StateNeutral {
		t.Errorf("expected neutral on insufficient data, got %s", got.State)
	}
	if len(got.Reasons) != 1 || got.Reasons[0].Kind != ReasonInsufficientData {
		t.Errorf("expected single insufficient_data reason, got %+v", got.Reasons)
	}
}

func TestClassify_ReasonsCapAndOrder(t *testing.T) {
	c := newTestClassifier(t)

	snap := signal.Snapshot{
		Accumulating: 9,
		Distributing: 1,
		NetFlowUSD:   120_000_000,
		NewPositions: 1,
	}
	got := c.Classify(&snap, false)

	if len(got.Reasons) > 3 {
		t.Fatalf("reason cap violated: %d reasons", len(got.Reasons))
	}
	// Net flow at 2.4x the bullish threshold dominates the 0.4 smart money
	// deviation and the 0.25 new-position saturation.
	if got.Reasons[0].Kind != ReasonNetFlow {
		t.Errorf("expected net_flow as dominant reason, got %s", got.Reasons[0].Kind)
	}
	for _, r := range got.Reasons {
		if r.State != got.State {
			t.Errorf("reason %s not stamped with state %s", r.Kind, got.State)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier(t)
	snap := signal.Snapshot{Accumulating: 5, Distributing: 2, NetFlowUSD: 75_000_000, NewPositions: 3}

	first := c.Classify(&snap, false)
	for i := 0; i < 20; i++ {
		got := c.Classify(&snap, false)
		if got.State != first.State || len(got.Reasons) != len(first.Reasons) {
			t.Fatalf("run %d diverged", i)
		}
		for j := range got.Reasons {
			if got.Reasons[j] != first.Reasons[j] {
				t.Fatalf("run %d reason %d diverged: %+v vs %+v", i, j, got.Reasons[j], first.Reasons[j])
			}
		}
	}
}

func TestReasonRender_Templates(t *testing.T) {
	testCases := []struct {
		reason   Reason
		expected string
	}{
		{Reason{Kind: ReasonSmartMoneyRatio, Accumulating: 3, Distributing: 1}, "3 smart money wallets accumulating vs 1 distributing"},
		{Reason{Kind: ReasonNetFlow, NetFlowUSD: 89_200_000}, "net inflow of $89.2M over the window"},
		{Reason{Kind: ReasonNetFlow, NetFlowUSD: -35_000_000}, "net outflow of $35.0M over the window"},
		{Reason{Kind: ReasonNewPositions, NewPositions: 4}, "4 new positions opened this window"},
		{Reason{Kind: ReasonInsufficientData}, "insufficient signal data, defaulting to neutral"},
	}

	for _, tc := range testCases {
		if got := tc.reason.Render(); got != tc.expected {
			t.Errorf("render %s: expected %q, got %q", tc.reason.Kind, tc.expected, got)
		}
	}
}
