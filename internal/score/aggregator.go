// Package score turns raw per-entity signal aggregates into bounded category
// scores and a clamped overall confidence. The aggregator is pure and
// deterministic: the same snapshot always produces the same breakdown.
package score

import (
	"math"

	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/signal"
)

// Breakdown carries the four category scores, each bounded to [0, 100].
type Breakdown struct {
	SmartMoney       float64 `json:"smart_money"`
	Regime           float64 `json:"regime"`
	Anomalies        float64 `json:"anomalies"`
	DistributionRisk float64 `json:"risk"`
}

// Result is the aggregator output: the category breakdown plus the clamped
// composite confidence.
type Result struct {
	Breakdown  Breakdown `json:"score_breakdown"`
	Confidence float64   `json:"confidence"`
	// InsufficientData is set when the snapshot carried no participants at
	// all; the breakdown degrades to neutral defaults instead of erroring.
	InsufficientData bool `json:"insufficient_data,omitempty"`
}

// Aggregator computes category scores under a validated weight configuration.
type Aggregator struct {
	cfg config.ScoringConfig
}

// NewAggregator creates an aggregator. The configuration is assumed validated
// at startup; weights summing to 1.0 is a config-load invariant.
func NewAggregator(cfg config.ScoringConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate computes the category breakdown and composite confidence for one
// snapshot. All denominators are guarded; no input can fault the aggregator.
func (a *Aggregator) Aggregate(snap *signal.Snapshot) Result {
	res := Result{}

	// Smart money: share of accumulating participants among active ones.
	// Zero activity degrades to the neutral midpoint rather than dividing.
	active := snap.Accumulating + snap.Distributing
	if active == 0 {
		res.Breakdown.SmartMoney = 50
	} else {
		res.Breakdown.SmartMoney = 100 * float64(snap.Accumulating) / float64(maxInt(active, 1))
	}

	// Regime: net flow normalized against the saturation scale, mapped from
	// [-1, 1] onto [0, 100].
	normFlow := clamp(snap.NetFlowUSD/a.cfg.RegimeFlowScaleUSD, -1, 1)
	res.Breakdown.Regime = 50 * (normFlow + 1)

	// Anomalies: new positions convert linearly into points, capped at 100.
	res.Breakdown.Anomalies = math.Min(a.cfg.AnomalyPointsPerPosition*float64(snap.NewPositions), 100)

	// Distribution risk: share of distributing participants among all.
	res.Breakdown.DistributionRisk = 100 * float64(snap.Distributing) / float64(maxInt(snap.TotalParticipants, 1))

	raw := a.cfg.SmartMoneyWeight*res.Breakdown.SmartMoney +
		a.cfg.RegimeWeight*res.Breakdown.Regime +
		a.cfg.AnomalyWeight*res.Breakdown.Anomalies -
		a.cfg.DistributionRiskWeight*res.Breakdown.DistributionRisk

	res.Confidence = clamp(math.Round(raw), a.cfg.ConfidenceFloor, a.cfg.ConfidenceCeil)
	res.InsufficientData = snap.TotalParticipants == 0 && active == 0 && snap.NetFlowUSD == 0

	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
