package decision

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chainsight/decisioncore/internal/classify"
	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/dislocation"
	"github.com/chainsight/decisioncore/internal/governor"
	"github.com/chainsight/decisioncore/internal/influence"
	"github.com/chainsight/decisioncore/internal/metrics"
	"github.com/chainsight/decisioncore/internal/mlclient"
	"github.com/chainsight/decisioncore/internal/score"
	"github.com/chainsight/decisioncore/internal/signal"
)

// Engine runs the full per-entity pipeline: aggregate, classify, cross-check,
// rank, and gate ML influence. Evaluation is pure and stateless across
// entities; the governor is the only shared state it touches.
type Engine struct {
	cfg        *config.Config
	aggregator *score.Aggregator
	classifier *classify.Classifier
	detector   *dislocation.Detector
	ranker     *influence.Ranker
	governor   *governor.Governor

	ml  *mlclient.Client
	reg *metrics.Registry
}

// Option customizes engine construction.
type Option func(*Engine)

// WithMLClient attaches the external ML subsystem client. Without it the
// engine always runs rule-based only.
func WithMLClient(c *mlclient.Client) Option {
	return func(e *Engine) { e.ml = c }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(r *metrics.Registry) Option {
	return func(e *Engine) { e.reg = r }
}

// NewEngine wires the pipeline components under one validated configuration.
func NewEngine(cfg *config.Config, gov *governor.Governor, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if gov == nil {
		return nil, fmt.Errorf("governor is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config invalid: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		aggregator: score.NewAggregator(cfg.Scoring),
		classifier: classify.NewClassifier(cfg.Classification),
		detector:   dislocation.NewDetector(cfg.Dislocation),
		ranker:     influence.NewRanker(cfg.Influence),
		governor:   gov,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate produces the decision record for one snapshot. The only error
// condition is a structurally unusable request; degraded data yields a
// neutral record, and ML trouble yields the rule-based record unmodified.
func (e *Engine) Evaluate(ctx context.Context, snap *signal.Snapshot, pressure signal.MarketPressure) (*Record, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	if snap.EntityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	start := time.Now()

	scored := e.aggregator.Aggregate(snap)
	classified := e.classifier.Classify(snap, scored.InsufficientData)
	findings := e.detector.Detect(classified.State, pressure)
	drivers := e.ranker.Rank(snap)

	outcome := e.resolveModifier(ctx, snap.EntityID, scored.Confidence)
	final := clamp(outcome.Final, e.cfg.Scoring.ConfidenceFloor, e.cfg.Scoring.ConfidenceCeil)

	govState := e.governor.Snapshot()
	mlSummary := MLStateSummary{
		Mode:         string(govState.Mode),
		KillSwitch:   string(govState.KillSwitch),
		DriftLevel:   string(govState.DriftLevel),
		LastModifier: final - outcome.Base,
	}

	reasonText := make([]string, 0, len(classified.Reasons))
	for _, r := range classified.Reasons {
		reasonText = append(reasonText, r.Render())
	}

	inputHash := hashInputs(snap, pressure, e.cfg.Version)
	record := &Record{
		RecordID:       recordID(inputHash, mlSummary),
		EntityID:       snap.EntityID,
		Window:         snap.Window,
		State:          classified.State,
		Confidence:     final,
		BaseConfidence: outcome.Base,
		ScoreBreakdown: scored.Breakdown,
		Reasons:        classified.Reasons,
		ReasonText:     reasonText,
		Contradictions: findings,
		TopDrivers:     drivers.TopDrivers,
		Concentration:  drivers.Concentration,
		DriverSummary:  drivers.Headline,
		MLState:        mlSummary,
		ConfigVersion:  e.cfg.Version,
		InputHash:      inputHash,
	}

	e.observe(record, findings, outcome, time.Since(start))

	return record, nil
}

// resolveModifier fetches and applies the ML confidence modifier when
// governance permits. Any ML failure degrades to an unmodified base; the
// decision path never errors on ML trouble.
func (e *Engine) resolveModifier(ctx context.Context, entityID string, base float64) governor.ModifierOutcome {
	state := e.governor.Snapshot()
	if !state.MLActive() || e.ml == nil {
		return governor.ModifierOutcome{Base: base, Final: base, Suppressed: "ml influence off"}
	}

	mod, err := e.ml.Modifier(ctx, entityID, base)
	if err != nil {
		mod = nil // fail closed, audited by the governor
	}
	return e.governor.ApplyModifier(entityID, base, mod)
}

// RankDecisions orders records by confidence descending within the canonical
// bucket order (bullish, neutral, risky), then applies ASSIST reordering if
// the governor permits it. The returned order is what list surfaces render.
func (e *Engine) RankDecisions(records []*Record) []*Record {
	ranked := make([]*Record, len(records))
	copy(ranked, records)

	bucketRank := map[classify.State]int{
		classify.StateBullish: 0,
		classify.StateNeutral: 1,
		classify.StateRisky:   2,
	}
	// Bucket first, confidence second, entity last: the order is total, so
	// ranking is deterministic.
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if bucketRank[a.State] != bucketRank[b.State] {
			return bucketRank[a.State] < bucketRank[b.State]
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Window < b.Window
	})

	// Records are unique per entity and window; the same entity may appear
	// once per window, so the lookup key carries both.
	entities := make([]governor.RankedEntity, len(ranked))
	byKey := make(map[string]*Record, len(ranked))
	for i, r := range ranked {
		entities[i] = governor.RankedEntity{
			EntityID:   r.EntityID,
			Window:     r.Window,
			Bucket:     r.State,
			Confidence: r.Confidence,
			MLScore:    r.MLState.LastModifier,
		}
		byKey[rankKey(r.EntityID, r.Window)] = r
	}

	reordered := e.governor.ReorderAssist(entities)
	out := make([]*Record, len(reordered))
	for i, ent := range reordered {
		out[i] = byKey[rankKey(ent.EntityID, ent.Window)]
	}
	return out
}

func rankKey(entityID string, window signal.Window) string {
	return entityID + "/" + string(window)
}

func (e *Engine) observe(record *Record, findings []dislocation.Finding, outcome governor.ModifierOutcome, elapsed time.Duration) {
	if e.reg == nil {
		return
	}

	e.reg.EvaluationsTotal.WithLabelValues(string(record.State)).Inc()
	e.reg.EvaluationDuration.Observe(elapsed.Seconds())
	e.reg.ConfidenceLast.WithLabelValues(record.EntityID).Set(record.Confidence)

	for _, f := range findings {
		e.reg.ContradictionsTotal.WithLabelValues(string(f.Kind), string(f.Severity)).Inc()
	}

	if outcome.Applied {
		e.reg.ModifiersApplied.Inc()
	} else if outcome.Suppressed != "" && outcome.Suppressed != "ml influence off" {
		e.reg.ModifiersSuppressed.WithLabelValues(outcome.Suppressed).Inc()
	}
	e.reg.SetMode(record.MLState.Mode)
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
