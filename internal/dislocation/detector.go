// Package dislocation cross-checks a classified market state against
// independent market pressure metrics and flags divergences worth surfacing
// as edges. Findings are annotations only: they never alter the state or the
// confidence that triggered them.
package dislocation

import (
	"github.com/chainsight/decisioncore/internal/classify"
	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/signal"
)

// Kind identifies a contradiction rule from the static table.
type Kind string

const (
	ElevatedCEXPressure Kind = "elevated_cex_pressure"
	RetailSelling       Kind = "retail_selling"
	RetailBuying        Kind = "retail_buying"
)

// Severity grades a finding for presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Finding is one fired contradiction rule. HistoricalAccuracy is a static
// base rate from back-testing the rule, not a live statistic; zero means the
// rule is informational and carries no accuracy claim.
type Finding struct {
	Kind               Kind     `json:"kind"`
	Severity           Severity `json:"severity"`
	HistoricalAccuracy float64  `json:"historical_accuracy,omitempty"` // percent
	Observed           float64  `json:"observed"`                      // the metric that fired the rule
	Threshold          float64  `json:"threshold"`
}

// Detector evaluates the static contradiction rule table.
type Detector struct {
	cfg config.DislocationConfig
}

// NewDetector creates a detector with the given pressure thresholds.
func NewDetector(cfg config.DislocationConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect runs the rule table in fixed order and returns every finding that
// fires. Zero findings is the common case.
func (d *Detector) Detect(state classify.State, pressure signal.MarketPressure) []Finding {
	findings := []Finding{}

	if state == classify.StateBullish && pressure.CEXSellPressurePct > d.cfg.CEXSellPressurePct {
		findings = append(findings, Finding{
			Kind:               ElevatedCEXPressure,
			Severity:           SeverityWarning,
			HistoricalAccuracy: 67,
			Observed:           pressure.CEXSellPressurePct,
			Threshold:          d.cfg.CEXSellPressurePct,
		})
	}

	if state == classify.StateBullish && pressure.RetailSentiment < d.cfg.RetailSentimentFloor {
		findings = append(findings, Finding{
			Kind:      RetailSelling,
			Severity:  SeverityInfo,
			Observed:  pressure.RetailSentiment,
			Threshold: d.cfg.RetailSentimentFloor,
		})
	}

	if state == classify.StateRisky && pressure.DEXBuyPressurePct > d.cfg.DEXBuyPressurePct {
		findings = append(findings, Finding{
			Kind:               RetailBuying,
			Severity:           SeverityDanger,
			HistoricalAccuracy: 72,
			Observed:           pressure.DEXBuyPressurePct,
			Threshold:          d.cfg.DEXBuyPressurePct,
		})
	}

	return findings
}
