package score

import (
	"math"
	"testing"

	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/signal"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(config.Default().Scoring)
}

func TestAggregate_SmartMoneyShare(t *testing.T) {
	agg := newTestAggregator(t)

	res := agg.Aggregate(&signal.Snapshot{
		Accumulating:      3,
		Distributing:      1,
		NetFlowUSD:        89_200_000,
		TotalParticipants: 4,
	})

	if res.Breakdown.SmartMoney != 75 {
		t.Errorf("smart money score: expected 75, got %.2f", res.Breakdown.SmartMoney)
	}
	if res.Confidence < 20 || res.Confidence > 95 {
		t.Errorf("confidence %.1f outside clamp bounds", res.Confidence)
	}
}

func TestAggregate_ZeroParticipantsNeutralDefault(t *testing.T) {
	agg := newTestAggregator(t)

	res := agg.Aggregate(&signal.Snapshot{})

	if res.Breakdown.SmartMoney != 50 {
		t.Errorf("expected neutral smart money default 50, got %.2f", res.Breakdown.SmartMoney)
	}
	if !res.InsufficientData {
		t.Error("expected insufficient data flag for empty snapshot")
	}
}

func TestAggregate_RegimeScoreSaturation(t *testing.T) {
	agg := newTestAggregator(t)

	testCases := []struct {
		name     string
		netFlow  float64
		expected float64
	}{
		{"deep_negative_saturates", -500_000_000, 0},
		{"negative_half_scale", -50_000_000, 25},
		{"flat", 0, 50},
		{"positive_half_scale", 50_000_000, 75},
		{"deep_positive_saturates", 2_000_000_000, 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := agg.Aggregate(&signal.Snapshot{NetFlowUSD: tc.netFlow})
			if math.Abs(res.Breakdown.Regime-tc.expected) > 1e-9 {
				t.Errorf("net flow %.0f: expected regime score %.1f, got %.2f",
					tc.netFlow, tc.expected, res.Breakdown.Regime)
			}
		})
	}
}

func TestAggregate_AnomalyCap(t *testing.T) {
	agg := newTestAggregator(t)

	res := agg.Aggregate(&signal.Snapshot{NewPositions: 2})
	if res.Breakdown.Anomalies != 50 {
		t.Errorf("2 new positions: expected anomaly score 50, got %.2f", res.Breakdown.Anomalies)
	}

	res = agg.Aggregate(&signal.Snapshot{NewPositions: 40})
	if res.Breakdown.Anomalies != 100 {
		t.Errorf("40 new positions: expected capped anomaly score 100, got %.2f", res.Breakdown.Anomalies)
	}
}

func TestAggregate_ConfidenceClampExtremes(t *testing.T) {
	agg := newTestAggregator(t)

	// All-bearish extreme: every participant distributing, deep outflows.
	low := agg.Aggregate(&signal.Snapshot{
		Distributing:      100,
		TotalParticipants: 100,
		NetFlowUSD:        -10_000_000_000,
	})
	if low.Confidence != 20 {
		t.Errorf("extreme bearish input: expected floor 20, got %.1f", low.Confidence)
	}

	// All-bullish extreme: pure accumulation, saturated inflows, heavy
	// new-position activity.
	high := agg.Aggregate(&signal.Snapshot{
		Accumulating:      100,
		TotalParticipants: 100,
		NetFlowUSD:        10_000_000_000,
		NewPositions:      50,
	})
	if high.Confidence != 85 {
		t.Errorf("extreme bullish input: expected 85, got %.1f", high.Confidence)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	agg := newTestAggregator(t)
	snap := &signal.Snapshot{
		Accumulating:      7,
		Distributing:      3,
		NetFlowUSD:        12_500_000,
		NewPositions:      2,
		TotalParticipants: 14,
	}

	first := agg.Aggregate(snap)
	for i := 0; i < 10; i++ {
		if got := agg.Aggregate(snap); got != first {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}
