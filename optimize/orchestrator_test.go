package optimize

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/axton-labs/backtrader/candle"
	"github.com/axton-labs/backtrader/engine"
	"github.com/axton-labs/backtrader/oracle"
	"github.com/axton-labs/backtrader/strategy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendingUp(n int, start, step float64) []candle.Candle {
	out := make([]candle.Candle, n)
	c := start
	for i := 0; i < n; i++ {
		o := c
		c = start + step*float64(i)
		out[i] = candle.Candle{T: int64(i) * 60_000, O: o, H: c + 1, L: o - 1, C: c}
	}
	return out
}

func flatCandles(n int, price float64) []candle.Candle {
	out := make([]candle.Candle, n)
	for i := range out {
		out[i] = candle.Candle{T: int64(i) * 60_000, O: price, H: price + 1, L: price - 1, C: price}
	}
	return out
}

func alwaysLongFactory(tp float64) StrategyFactory {
	return func(overrides map[string]float64) (strategy.Strategy, error) {
		sd := 50.0
		if v, ok := overrides["stopDistance"]; ok {
			sd = v
		}
		return &strategy.AlwaysLong{StopDistance: sd, TakeProfitPx: tp}, nil
	}
}

func baseEngineConfig() engine.Config {
	return engine.Config{
		InitialCapital:       10_000,
		SizingMode:           engine.SizingRisk,
		RiskPerTradeUsd:      10,
		CooldownBars:         1,
		MaxConsecutiveLosses: 100,
		MaxDailyLossR:        100,
		MaxTradesPerDay:      1000,
		MaxGlobalTradesDay:   1000,
	}
}

func baseOrchestratorConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		Asset:         "BTC-TEST",
		LockDir:       filepath.Join(dir, "locks"),
		CheckpointDir: filepath.Join(dir, "checkpoint"),
		HistoryPath:   filepath.Join(dir, "history.json"),

		EngineConfig: baseEngineConfig(),
		ParamBounds:  map[string]ParamBounds{"stopDistance": {Min: 0, Max: 1e9}},

		Guardrails: Guardrails{},
		Weights:    DefaultWeights(),

		OracleTimeout: time.Second,

		MaxIterPerPhase:      map[Phase]int{PhaseRefine: 2, PhaseResearch: 2, PhaseRestructure: 2},
		MaxCycles:            1,
		MaxTransientFailures: 3,
		MaxFixAttempts:       3,

		Logger: zerolog.Nop(),
	}
}

// A profitable run should satisfy the unconditional totalPnl>0 criterion on
// its very first iteration and finish with CRITERIA_MET.
func TestOrchestrator_Run_MeetsCriteriaOnFirstIteration(t *testing.T) {
	cfg := baseOrchestratorConfig(t)
	cfg.Candles = trendingUp(50, 10_000, 20)
	cfg.Factory = alwaysLongFactory(0) // no TP; rides the uptrend to end-of-data profit
	cfg.Oracle = oracle.NoopOracle{}

	o, err := New(cfg)
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ExitCriteriaMet, summary.Exit)
	assert.Equal(t, 1, summary.BestIter)
	assert.Equal(t, 1, summary.Iterations)
	assert.True(t, CheckpointExists(cfg.CheckpointDir))
}

// A run that can never clear its acceptance criteria should walk the phase
// machine through every phase via PhaseTimeout, consult the oracle at each
// unmet iteration, apply a proposed parameter change along the way, and
// terminate by budget exhaustion with ExitNoImprovement rather than looping
// forever.
func TestOrchestrator_Run_ScriptedOracleDrivesPhaseEscalation(t *testing.T) {
	cfg := baseOrchestratorConfig(t)
	cfg.Candles = flatCandles(20, 100) // forced EOD close at the entry price, so pnl is 0
	cfg.Factory = alwaysLongFactory(0)

	minTrades := 5 // unreachable: AlwaysLong only ever opens one position
	cfg.Criteria = Criteria{MinTrades: &minTrades}

	scripted := &oracle.ScriptedOracle{
		Decisions: []oracle.Decision{
			{Kind: oracle.KindParamChange, Overrides: map[string]float64{"stopDistance": 40}},
			{Kind: oracle.KindResearchBrief, SuggestedApproaches: []string{"try a wider stop before escalating further"}},
			{Kind: oracle.KindNoChange},
		},
	}
	cfg.Oracle = scripted

	o, err := New(cfg)
	require.NoError(t, err)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ExitNoImprovement, summary.Exit)
	assert.Equal(t, PhaseDone, o.machine.Phase)
	assert.Equal(t, 6, summary.Iterations) // 2 iters/phase * 3 phases before the single-cycle restructure exit
	assert.GreaterOrEqual(t, scripted.Calls(), 3)
	assert.NotEmpty(t, o.history.Iterations)
	assert.Len(t, o.history.Iterations, summary.Iterations)
}
