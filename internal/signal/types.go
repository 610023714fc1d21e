// Package signal defines the read-only input model consumed by the decision
// engine: per-entity signal snapshots, external market pressure metrics, and
// raw per-wallet activity. All inputs are owned by the upstream collaborator
// (indexers, aggregators) and are never mutated by the core.
package signal

import (
	"time"
)

// Window identifies the aggregation window a snapshot was built over.
type Window string

const (
	Window1h  Window = "1h"
	Window4h  Window = "4h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
)

// Snapshot is the per-entity, per-window input to an evaluation. Counts are
// pre-aggregated by the ingestion layer; the core reads them as-is.
type Snapshot struct {
	EntityID          string           `json:"entity_id"`
	Window            Window           `json:"window"`
	Accumulating      int              `json:"accumulating"`       // participants net-adding to positions
	Distributing      int              `json:"distributing"`       // participants net-reducing positions
	NetFlowUSD        float64          `json:"net_flow_usd"`       // signed aggregate flow
	NewPositions      int              `json:"new_positions"`      // wallets first seen this window
	TotalParticipants int              `json:"total_participants"` // all active participants
	TotalVolumeUSD    float64          `json:"total_volume_usd"`
	Wallets           []WalletActivity `json:"wallets,omitempty"`
	WindowStart       time.Time        `json:"window_start"`
	WindowEnd         time.Time        `json:"window_end"`
}

// WalletActivity is one wallet's raw activity within the snapshot window.
type WalletActivity struct {
	Address      string    `json:"address"`
	VolumeInUSD  float64   `json:"volume_in_usd"`
	VolumeOutUSD float64   `json:"volume_out_usd"`
	TxCount      int       `json:"tx_count"`
	FirstSeen    time.Time `json:"first_seen"` // first activity inside the window
}

// TotalVolume returns gross wallet volume (in + out).
func (w WalletActivity) TotalVolume() float64 {
	return w.VolumeInUSD + w.VolumeOutUSD
}

// NetFlow returns signed wallet flow (in - out).
func (w WalletActivity) NetFlow() float64 {
	return w.VolumeInUSD - w.VolumeOutUSD
}

// MarketPressure carries independent market metrics fetched by an external
// collaborator. Used only for cross-checking a classification; never feeds
// back into scores.
type MarketPressure struct {
	CEXSellPressurePct float64 `json:"cex_sell_pressure_pct"` // 0-100
	DEXBuyPressurePct  float64 `json:"dex_buy_pressure_pct"`  // 0-100
	RetailSentiment    float64 `json:"retail_sentiment"`      // signed index, roughly [-100, 100]
}

// HasWallets reports whether the snapshot carries enough wallet detail to run
// influence ranking.
func (s *Snapshot) HasWallets() bool {
	return len(s.Wallets) > 0 && s.TotalVolumeUSD > 0
}

// WindowDuration returns the span of the snapshot window. Zero when the
// caller did not populate the boundary timestamps.
func (s *Snapshot) WindowDuration() time.Duration {
	if s.WindowStart.IsZero() || s.WindowEnd.IsZero() || !s.WindowEnd.After(s.WindowStart) {
		return 0
	}
	return s.WindowEnd.Sub(s.WindowStart)
}
