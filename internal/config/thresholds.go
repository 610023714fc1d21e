// Package config loads and validates the versioned threshold configuration
// the decision engine runs on. Every tunable lives here so thresholds can be
// back-tested and retuned without code changes; a malformed configuration is
// a fatal startup error, never a per-request one.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// weightSumTolerance bounds floating point slack when checking that a weight
// set sums to 1.0.
const weightSumTolerance = 0.001

// Config is the full threshold configuration for one engine version.
type Config struct {
	Version string `yaml:"version" validate:"required"`

	Scoring        ScoringConfig        `yaml:"scoring"`
	Classification ClassificationConfig `yaml:"classification"`
	Dislocation    DislocationConfig    `yaml:"dislocation"`
	Influence      InfluenceConfig      `yaml:"influence"`
	Governor       GovernorConfig       `yaml:"governor"`
}

// ScoringConfig holds the category weights and scaling constants for the
// score aggregator. The four weights are absolute magnitudes and must sum to
// 1.0; the distribution risk term is applied subtractively.
type ScoringConfig struct {
	SmartMoneyWeight       float64 `yaml:"smart_money_weight" default:"0.40" validate:"gt=0,lte=1"`
	RegimeWeight           float64 `yaml:"regime_weight" default:"0.25" validate:"gt=0,lte=1"`
	AnomalyWeight          float64 `yaml:"anomaly_weight" default:"0.20" validate:"gt=0,lte=1"`
	DistributionRiskWeight float64 `yaml:"distribution_risk_weight" default:"0.15" validate:"gt=0,lte=1"`

	// RegimeFlowScaleUSD is the net flow magnitude that saturates the regime
	// score at its bounds.
	RegimeFlowScaleUSD float64 `yaml:"regime_flow_scale_usd" default:"100000000" validate:"gt=0"`
	// AnomalyPointsPerPosition converts new-position counts into anomaly
	// score points before the 100 cap.
	AnomalyPointsPerPosition float64 `yaml:"anomaly_points_per_position" default:"25" validate:"gt=0"`

	ConfidenceFloor float64 `yaml:"confidence_floor" default:"20" validate:"gte=0,lt=100"`
	ConfidenceCeil  float64 `yaml:"confidence_ceil" default:"95" validate:"gt=0,lte=100"`
}

// ClassificationConfig holds the state classification thresholds.
type ClassificationConfig struct {
	BullishAccumRatio    float64 `yaml:"bullish_accum_ratio" default:"1.5" validate:"gt=1"`
	BullishNetFlowUSD    float64 `yaml:"bullish_net_flow_usd" default:"50000000" validate:"gt=0"`
	RiskyDistributeRatio float64 `yaml:"risky_distribute_ratio" default:"1.5" validate:"gt=1"`
	RiskyNetFlowUSD      float64 `yaml:"risky_net_flow_usd" default:"-20000000" validate:"lt=0"`
}

// DislocationConfig holds the market pressure thresholds for the static
// contradiction rule table.
type DislocationConfig struct {
	CEXSellPressurePct   float64 `yaml:"cex_sell_pressure_pct" default:"60" validate:"gt=0,lte=100"`
	RetailSentimentFloor float64 `yaml:"retail_sentiment_floor" default:"-10" validate:"lt=0"`
	DEXBuyPressurePct    float64 `yaml:"dex_buy_pressure_pct" default:"65" validate:"gt=0,lte=100"`
}

// InfluenceConfig holds the influence ranking weights and tier boundaries.
// The three component weights must sum to 1.0.
type InfluenceConfig struct {
	VolumeShareWeight       float64 `yaml:"volume_share_weight" default:"0.4" validate:"gt=0,lte=1"`
	ActivityFrequencyWeight float64 `yaml:"activity_frequency_weight" default:"0.3" validate:"gt=0,lte=1"`
	TimingWeight            float64 `yaml:"timing_weight" default:"0.3" validate:"gt=0,lte=1"`

	// TimingHalfLifeFraction positions the exponential decay half-life as a
	// fraction of the window span: a wallet first active at this point in the
	// window carries half the timing weight of one active at window start.
	TimingHalfLifeFraction float64 `yaml:"timing_half_life_fraction" default:"0.5" validate:"gt=0,lte=1"`

	// RoleNetShareThreshold is the |netFlow|/volume share past which a wallet
	// is classified buyer or seller rather than mixed.
	RoleNetShareThreshold float64 `yaml:"role_net_share_threshold" default:"0.05" validate:"gt=0,lt=1"`

	HighTierFloor   float64 `yaml:"high_tier_floor" default:"0.5" validate:"gt=0,lte=1"`
	MediumTierFloor float64 `yaml:"medium_tier_floor" default:"0.2" validate:"gt=0,lte=1"`
}

// GovernorConfig holds the ML governance safety parameters.
type GovernorConfig struct {
	// ModifierBandPct caps how far an applied ML modifier may move the
	// rule-based confidence, as a fraction of the base value.
	ModifierBandPct float64 `yaml:"modifier_band_pct" default:"0.10" validate:"gt=0,lte=0.5"`
	// AssistMaxShift caps how many rank positions ASSIST mode may move an
	// entity within its bucket.
	AssistMaxShift int `yaml:"assist_max_shift" default:"2" validate:"gte=1,lte=10"`
	// RollbackPrecisionDrop is the shadow precision degradation past which
	// the kill switch fires automatically.
	RollbackPrecisionDrop float64 `yaml:"rollback_precision_drop" default:"0.05" validate:"gt=0,lte=1"`
}

var validate = validator.New()

// Default returns the built-in configuration, validated. It panics only on a
// programming error in the default tags themselves.
func Default() *Config {
	cfg := &Config{Version: "v1.0.0"}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Load reads a threshold configuration from a YAML file, applies defaults
// for omitted fields, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and the weight-sum invariants. A failure
// here is a fatal configuration error for the process.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	scoringSum := c.Scoring.SmartMoneyWeight + c.Scoring.RegimeWeight +
		c.Scoring.AnomalyWeight + c.Scoring.DistributionRiskWeight
	if math.Abs(scoringSum-1.0) > weightSumTolerance {
		return fmt.Errorf("scoring weights sum to %.4f, expected 1.0", scoringSum)
	}

	influenceSum := c.Influence.VolumeShareWeight + c.Influence.ActivityFrequencyWeight +
		c.Influence.TimingWeight
	if math.Abs(influenceSum-1.0) > weightSumTolerance {
		return fmt.Errorf("influence weights sum to %.4f, expected 1.0", influenceSum)
	}

	if c.Scoring.ConfidenceFloor >= c.Scoring.ConfidenceCeil {
		return fmt.Errorf("confidence floor %.1f not below ceiling %.1f",
			c.Scoring.ConfidenceFloor, c.Scoring.ConfidenceCeil)
	}
	if c.Influence.MediumTierFloor >= c.Influence.HighTierFloor {
		return fmt.Errorf("medium tier floor %.2f not below high tier floor %.2f",
			c.Influence.MediumTierFloor, c.Influence.HighTierFloor)
	}

	return nil
}

// DefaultConfigPath returns the conventional location of the thresholds file.
func DefaultConfigPath() string {
	return filepath.Join("config", "thresholds.yaml")
}
