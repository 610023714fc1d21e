// Package influence ranks participant wallets by their weighted contribution
// to the observed activity behind a decision: volume share, activity
// frequency, and how early in the window the wallet acted. Scores are shares
// of the total weighted activity, so the returned top-N always sums to at
// most 1.0.
package influence

import (
	"fmt"
	"math"
	"sort"

	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/signal"
)

// TopDriverCount is the fixed product-facing truncation of the ranking.
const TopDriverCount = 3

// Role classifies a wallet's net behavior within the window.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleMixed  Role = "mixed"
)

// ConfidenceTier buckets a contribution by influence share.
type ConfidenceTier string

const (
	TierLow    ConfidenceTier = "low"
	TierMedium ConfidenceTier = "medium"
	TierHigh   ConfidenceTier = "high"
)

// ScoreComponents breaks an influence score into its weighted inputs.
type ScoreComponents struct {
	VolumeShare       float64 `json:"volume_share"`
	ActivityFrequency float64 `json:"activity_frequency"`
	TimingWeight      float64 `json:"timing_weight"`
}

// Contribution is one wallet's ranked influence record.
type Contribution struct {
	WalletAddress   string          `json:"wallet_address"`
	Role            Role            `json:"role"`
	InfluenceScore  float64         `json:"influence_score"` // share of total, [0,1]
	ScoreComponents ScoreComponents `json:"score_components"`
	ConfidenceTier  ConfidenceTier  `json:"confidence_tier"`
}

// Concentration summarizes volume concentration over the full ranking.
type Concentration struct {
	Top1Share  float64 `json:"top1_share"`
	Top5Share  float64 `json:"top5_share"`
	Top10Share float64 `json:"top10_share"`
}

// Report is the ranker output for one entity/window.
type Report struct {
	TopDrivers    []Contribution `json:"top_drivers"`
	Concentration Concentration  `json:"concentration"`
	Headline      string         `json:"headline"`
	Description   string         `json:"description"`
	WalletCount   int            `json:"wallet_count"`
}

const emptyHeadline = "No dominant wallets identified"

// Ranker computes per-wallet influence under a validated weight config.
type Ranker struct {
	cfg config.InfluenceConfig
}

// NewRanker creates a ranker. Component weights summing to 1.0 is a
// config-load invariant.
func NewRanker(cfg config.InfluenceConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rank scores every wallet in the snapshot, sorts strictly descending by
// influence with lexical address tie-breaks, and truncates to the top
// drivers. Empty input yields an explicit empty report, never an error.
func (r *Ranker) Rank(snap *signal.Snapshot) Report {
	if !snap.HasWallets() {
		return Report{
			TopDrivers: []Contribution{},
			Headline:   emptyHeadline,
			Description: fmt.Sprintf("No wallet activity met the ranking threshold for %s over %s.",
				entityLabel(snap), snap.Window),
		}
	}

	maxTx := 0
	for _, w := range snap.Wallets {
		if w.TxCount > maxTx {
			maxTx = w.TxCount
		}
	}

	type scored struct {
		contribution Contribution
		raw          float64
	}

	ranked := make([]scored, 0, len(snap.Wallets))
	var rawTotal float64

	for _, w := range snap.Wallets {
		comps := ScoreComponents{
			VolumeShare:       w.TotalVolume() / snap.TotalVolumeUSD,
			ActivityFrequency: activityFrequency(w.TxCount, maxTx),
			TimingWeight:      r.timingWeight(snap, w),
		}
		raw := r.cfg.VolumeShareWeight*comps.VolumeShare +
			r.cfg.ActivityFrequencyWeight*comps.ActivityFrequency +
			r.cfg.TimingWeight*comps.TimingWeight
		rawTotal += raw

		ranked = append(ranked, scored{
			contribution: Contribution{
				WalletAddress:   w.Address,
				Role:            r.role(w),
				ScoreComponents: comps,
			},
			raw: raw,
		})
	}

	// Normalize raw weighted scores into shares of the total so truncation
	// keeps the sum bounded by 1.0.
	for i := range ranked {
		share := 0.0
		if rawTotal > 0 {
			share = ranked[i].raw / rawTotal
		}
		ranked[i].contribution.InfluenceScore = share
		ranked[i].contribution.ConfidenceTier = r.tier(share)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].contribution.InfluenceScore != ranked[j].contribution.InfluenceScore {
			return ranked[i].contribution.InfluenceScore > ranked[j].contribution.InfluenceScore
		}
		return ranked[i].contribution.WalletAddress < ranked[j].contribution.WalletAddress
	})

	// Concentration comes from the full ranking, not the truncated one.
	var conc Concentration
	for i, s := range ranked {
		share := s.contribution.ScoreComponents.VolumeShare
		if i < 1 {
			conc.Top1Share += share
		}
		if i < 5 {
			conc.Top5Share += share
		}
		if i < 10 {
			conc.Top10Share += share
		}
	}

	n := len(ranked)
	if n > TopDriverCount {
		n = TopDriverCount
	}
	top := make([]Contribution, n)
	for i := 0; i < n; i++ {
		top[i] = ranked[i].contribution
	}

	return Report{
		TopDrivers:    top,
		Concentration: conc,
		Headline:      headline(top, conc),
		Description: fmt.Sprintf("Top wallet holds %.1f%% of window volume across %d active wallets; top 5 hold %.1f%%.",
			conc.Top1Share*100, len(ranked), conc.Top5Share*100),
		WalletCount: len(ranked),
	}
}

// timingWeight decays exponentially with how late in the window the wallet
// first acted. The half-life sits at TimingHalfLifeFraction of the window
// span: an actor first seen there carries half the weight of one active at
// window start. Missing timestamps degrade to the neutral 0.5 midpoint.
func (r *Ranker) timingWeight(snap *signal.Snapshot, w signal.WalletActivity) float64 {
	span := snap.WindowDuration()
	if span <= 0 || w.FirstSeen.IsZero() {
		return 0.5
	}

	elapsed := w.FirstSeen.Sub(snap.WindowStart)
	if elapsed < 0 {
		elapsed = 0
	}
	frac := elapsed.Seconds() / span.Seconds()
	if frac > 1 {
		frac = 1
	}

	return math.Exp(-math.Ln2 * frac / r.cfg.TimingHalfLifeFraction)
}

func (r *Ranker) role(w signal.WalletActivity) Role {
	vol := w.TotalVolume()
	if vol <= 0 {
		return RoleMixed
	}
	netShare := w.NetFlow() / vol
	switch {
	case netShare > r.cfg.RoleNetShareThreshold:
		return RoleBuyer
	case netShare < -r.cfg.RoleNetShareThreshold:
		return RoleSeller
	default:
		return RoleMixed
	}
}

func (r *Ranker) tier(share float64) ConfidenceTier {
	switch {
	case share >= r.cfg.HighTierFloor:
		return TierHigh
	case share >= r.cfg.MediumTierFloor:
		return TierMedium
	default:
		return TierLow
	}
}

func activityFrequency(txCount, maxTx int) float64 {
	if maxTx == 0 {
		return 0
	}
	return float64(txCount) / float64(maxTx)
}

func headline(top []Contribution, conc Concentration) string {
	if len(top) == 0 {
		return emptyHeadline
	}
	lead := top[0]
	switch lead.Role {
	case RoleBuyer:
		return fmt.Sprintf("Accumulation led by %s with %.1f%% of weighted activity",
			shortAddress(lead.WalletAddress), lead.InfluenceScore*100)
	case RoleSeller:
		return fmt.Sprintf("Distribution led by %s with %.1f%% of weighted activity",
			shortAddress(lead.WalletAddress), lead.InfluenceScore*100)
	default:
		return fmt.Sprintf("Two-way flow led by %s with %.1f%% of weighted activity",
			shortAddress(lead.WalletAddress), lead.InfluenceScore*100)
	}
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func entityLabel(snap *signal.Snapshot) string {
	if snap.EntityID == "" {
		return "entity"
	}
	return snap.EntityID
}
