package decision

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsight/decisioncore/internal/audit"
	"github.com/chainsight/decisioncore/internal/classify"
	"github.com/chainsight/decisioncore/internal/config"
	"github.com/chainsight/decisioncore/internal/dislocation"
	"github.com/chainsight/decisioncore/internal/governor"
	"github.com/chainsight/decisioncore/internal/mlclient"
	"github.com/chainsight/decisioncore/internal/signal"
)

type stubBackend struct {
	modifier *mlclient.Modifier
	err      error
}

func (s *stubBackend) FetchModifier(ctx context.Context, entityID string, base float64) (*mlclient.Modifier, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.modifier, nil
}

func (s *stubBackend) FetchDrift(ctx context.Context) (*mlclient.DriftReport, error) {
	return &mlclient.DriftReport{Level: "LOW"}, nil
}

func (s *stubBackend) FetchShadowResult(ctx context.Context) (*mlclient.ShadowResult, error) {
	return &mlclient.ShadowResult{Verdict: mlclient.VerdictNeutral}, nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *governor.Governor) {
	t.Helper()
	gov := governor.New(config.Default().Governor, audit.NewTrail())
	eng, err := NewEngine(config.Default(), gov, opts...)
	require.NoError(t, err)
	return eng, gov
}

func advisorMode(t *testing.T, gov *governor.Governor) {
	t.Helper()
	_, err := gov.EvaluateGates(governor.NewGateReport(map[string]bool{
		governor.GateCoverage:     true,
		governor.GateDataset:      true,
		governor.GateModelQuality: true,
		governor.GateDrift:        true,
		governor.GateShadow:       true,
	}), "ops@desk")
	require.NoError(t, err)
	_, err = gov.SetMode(governor.ModeAdvisor, governor.Approval{Actor: "ops@desk"})
	require.NoError(t, err)
}

func bullishSnapshot() *signal.Snapshot {
	return &signal.Snapshot{
		EntityID:          "PEPE",
		Window:            signal.Window24h,
		Accumulating:      3,
		Distributing:      1,
		NetFlowUSD:        89_200_000,
		NewPositions:      4,
		TotalParticipants: 4,
	}
}

func TestEvaluate_ScenarioA_BullishAccumulation(t *testing.T) {
	eng, _ := newTestEngine(t)

	record, err := eng.Evaluate(context.Background(), bullishSnapshot(), signal.MarketPressure{})
	require.NoError(t, err)

	assert.Equal(t, 75.0, record.ScoreBreakdown.SmartMoney)
	assert.Equal(t, classify.StateBullish, record.State)
	assert.GreaterOrEqual(t, record.Confidence, 70.0)
	assert.LessOrEqual(t, record.Confidence, 95.0)
	assert.NotEmpty(t, record.Reasons)
	assert.Equal(t, "OFF", record.MLState.Mode)
}

func TestEvaluate_ScenarioB_NoWalletVolume(t *testing.T) {
	eng, _ := newTestEngine(t)

	snap := bullishSnapshot()
	snap.TotalVolumeUSD = 0
	snap.Wallets = []signal.WalletActivity{{Address: "0xabc", TxCount: 2}}

	record, err := eng.Evaluate(context.Background(), snap, signal.MarketPressure{})
	require.NoError(t, err)

	assert.Empty(t, record.TopDrivers)
	assert.Equal(t, "No dominant wallets identified", record.DriverSummary)
}

func TestEvaluate_ScenarioC_CriticalDriftKillsMLMidCycle(t *testing.T) {
	backend := &stubBackend{modifier: &mlclient.Modifier{Value: 5, ModelID: "conf-adj-v2"}}
	ml := mlclient.NewClient(backend, mlclient.DefaultConfig())
	eng, gov := newTestEngine(t, WithMLClient(ml))
	advisorMode(t, gov)

	state, err := gov.ReportDrift(mlclient.DriftReport{Level: "CRITICAL", Score: 0.95})
	require.NoError(t, err)
	assert.Equal(t, governor.KillSwitchTriggered, state.KillSwitch)
	assert.Equal(t, governor.ModeOff, state.Mode)

	record, err := eng.Evaluate(context.Background(), bullishSnapshot(), signal.MarketPressure{})
	require.NoError(t, err)
	assert.Equal(t, record.BaseConfidence, record.Confidence, "no modifier after auto-trigger")
	assert.Equal(t, "TRIGGERED", record.MLState.KillSwitch)
	assert.Equal(t, "OFF", record.MLState.Mode)
}

func TestEvaluate_ScenarioD_SingleCEXContradiction(t *testing.T) {
	eng, _ := newTestEngine(t)

	record, err := eng.Evaluate(context.Background(), bullishSnapshot(), signal.MarketPressure{
		CEXSellPressurePct: 68,
	})
	require.NoError(t, err)

	require.Len(t, record.Contradictions, 1)
	assert.Equal(t, dislocation.ElevatedCEXPressure, record.Contradictions[0].Kind)
	assert.Equal(t, 67.0, record.Contradictions[0].HistoricalAccuracy)
}

func TestEvaluate_Idempotent(t *testing.T) {
	eng, _ := newTestEngine(t)

	snap := bullishSnapshot()
	snap.TotalVolumeUSD = 10_000
	snap.WindowStart = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	snap.WindowEnd = snap.WindowStart.Add(24 * time.Hour)
	snap.Wallets = []signal.WalletActivity{
		{Address: "0xaaa", VolumeInUSD: 7000, TxCount: 5, FirstSeen: snap.WindowStart},
		{Address: "0xbbb", VolumeOutUSD: 3000, TxCount: 2, FirstSeen: snap.WindowStart.Add(6 * time.Hour)},
	}
	pressure := signal.MarketPressure{CEXSellPressurePct: 68, RetailSentiment: -15}

	first, err := eng.Evaluate(context.Background(), snap, pressure)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		got, err := eng.Evaluate(context.Background(), snap, pressure)
		require.NoError(t, err)
		gotJSON, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(gotJSON), "run %d not bit-for-bit identical", i)
	}
}

func TestEvaluate_EmptySnapshotDegradesNeutral(t *testing.T) {
	eng, _ := newTestEngine(t)

	record, err := eng.Evaluate(context.Background(), &signal.Snapshot{
		EntityID: "GHOST",
		Window:   signal.Window24h,
	}, signal.MarketPressure{})
	require.NoError(t, err)

	assert.Equal(t, classify.StateNeutral, record.State)
	require.NotEmpty(t, record.Reasons)
	assert.Equal(t, classify.ReasonInsufficientData, record.Reasons[0].Kind)
}

func TestEvaluate_RejectsStructurallyInvalidRequest(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Evaluate(context.Background(), nil, signal.MarketPressure{})
	assert.Error(t, err)

	_, err = eng.Evaluate(context.Background(), &signal.Snapshot{Window: signal.Window24h}, signal.MarketPressure{})
	assert.Error(t, err)
}

func TestEvaluate_AdvisorModifierBounded(t *testing.T) {
	backend := &stubBackend{modifier: &mlclient.Modifier{Value: 50, ModelID: "conf-adj-v2"}}
	ml := mlclient.NewClient(backend, mlclient.DefaultConfig())
	eng, gov := newTestEngine(t, WithMLClient(ml))
	advisorMode(t, gov)

	record, err := eng.Evaluate(context.Background(), bullishSnapshot(), signal.MarketPressure{})
	require.NoError(t, err)

	assert.InDelta(t, record.BaseConfidence*1.1, record.Confidence, 1e-9,
		"oversized modifier clamps to +10%% of base")
	assert.LessOrEqual(t, record.Confidence, 95.0)
	assert.Equal(t, "ADVISOR", record.MLState.Mode)
}

func TestEvaluate_MLUnreachableFailsClosed(t *testing.T) {
	backend := &stubBackend{err: errors.New("dial tcp: connection refused")}
	ml := mlclient.NewClient(backend, mlclient.DefaultConfig())
	eng, gov := newTestEngine(t, WithMLClient(ml))
	advisorMode(t, gov)

	record, err := eng.Evaluate(context.Background(), bullishSnapshot(), signal.MarketPressure{})
	require.NoError(t, err, "ml outage must not fail the decision")
	assert.Equal(t, record.BaseConfidence, record.Confidence)
}

func TestEvaluate_ParallelEntitiesShareNothing(t *testing.T) {
	eng, _ := newTestEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			snap := bullishSnapshot()
			snap.EntityID = string(rune('A' + n))
			record, err := eng.Evaluate(context.Background(), snap, signal.MarketPressure{})
			if err != nil {
				t.Errorf("entity %d: %v", n, err)
				return
			}
			if record.State != classify.StateBullish {
				t.Errorf("entity %d: unexpected state %s", n, record.State)
			}
		}(i)
	}
	wg.Wait()
}

func TestRankDecisions_CanonicalOrder(t *testing.T) {
	eng, _ := newTestEngine(t)

	records := []*Record{
		{EntityID: "R1", State: classify.StateRisky, Confidence: 80},
		{EntityID: "N1", State: classify.StateNeutral, Confidence: 90},
		{EntityID: "B2", State: classify.StateBullish, Confidence: 70},
		{EntityID: "B1", State: classify.StateBullish, Confidence: 88},
		{EntityID: "N2", State: classify.StateNeutral, Confidence: 90},
	}

	ranked := eng.RankDecisions(records)
	got := make([]string, len(ranked))
	for i, r := range ranked {
		got[i] = r.EntityID
	}
	assert.Equal(t, []string{"B1", "B2", "N1", "N2", "R1"}, got)
}

func TestRankDecisions_SameEntityAcrossWindows(t *testing.T) {
	eng, _ := newTestEngine(t)

	records := []*Record{
		{EntityID: "PEPE", Window: signal.Window7d, State: classify.StateBullish, Confidence: 82},
		{EntityID: "PEPE", Window: signal.Window24h, State: classify.StateBullish, Confidence: 74},
		{EntityID: "DOGE", Window: signal.Window24h, State: classify.StateNeutral, Confidence: 60},
	}

	ranked := eng.RankDecisions(records)
	require.Len(t, ranked, 3)

	// Every input record survives exactly once; no window is dropped or
	// emitted twice.
	seen := map[string]int{}
	for _, r := range ranked {
		seen[r.EntityID+"/"+string(r.Window)]++
	}
	assert.Equal(t, map[string]int{
		"PEPE/7d":  1,
		"PEPE/24h": 1,
		"DOGE/24h": 1,
	}, seen)

	assert.Equal(t, signal.Window7d, ranked[0].Window)
	assert.Equal(t, signal.Window24h, ranked[1].Window)
	assert.Equal(t, "DOGE", ranked[2].EntityID)
}

func TestRecordID_StableAndGovernanceSensitive(t *testing.T) {
	hash := hashInputs(bullishSnapshot(), signal.MarketPressure{}, "v1.0.0")

	off := recordID(hash, MLStateSummary{Mode: "OFF", KillSwitch: "ARMED", DriftLevel: "LOW"})
	offAgain := recordID(hash, MLStateSummary{Mode: "OFF", KillSwitch: "ARMED", DriftLevel: "LOW"})
	advisor := recordID(hash, MLStateSummary{Mode: "ADVISOR", KillSwitch: "ARMED", DriftLevel: "LOW"})

	assert.Equal(t, off, offAgain)
	assert.NotEqual(t, off, advisor)
}
