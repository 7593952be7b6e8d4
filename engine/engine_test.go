package engine

import (
	"testing"

	"github.com/axton-labs/backtrader/candle"
	"github.com/axton-labs/backtrader/position"
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

func baseConfig() Config {
	return Config{
		InitialCapital:       10_000,
		SizingMode:           SizingRisk,
		RiskPerTradeUsd:      10,
		CooldownBars:         1,
		MaxConsecutiveLosses: 100,
		MaxDailyLossR:        100,
		MaxTradesPerDay:      1000,
		MaxGlobalTradesDay:   1000,
	}
}

// Scenario 1: always-long, trending up, 100 bars.
func TestScenarioAlwaysLongTrendingUp(t *testing.T) {
	candles := trendingUp(100, 10000, 5)
	strat := &strategy.AlwaysLong{StopDistance: 50}
	e := New(baseConfig(), strat, zerolog.Nop())

	res, err := e.Run(candles, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Trades), 1)

	for _, tr := range res.Trades {
		assert.InDelta(t, 0.2, tr.Size, 1e-9) // 10 / 50
		assert.False(t, tr.PnL > 0 && tr.PnL < 0)
	}
	assert.InDelta(t, res.FinalEquity, 10_000+res.TotalPnL, 0.5)
}

// Scenario 2: SL-wins bar.
func TestScenarioSLWinsBar(t *testing.T) {
	// Every bar is flat at 100 except the conflict bar 8. The scripted
	// strategy decides once at bar 4 with explicit SL/TP, so its market
	// entry fills at bar 5's open.
	candles := make([]candle.Candle, 9)
	for i := range candles {
		candles[i] = candle.Candle{T: int64(i) * 60_000, O: 100, H: 100, L: 100, C: 100}
	}
	// bar 5: entry bar (open=close=100)
	candles[5] = candle.Candle{T: 5 * 60_000, O: 100, H: 100, L: 100, C: 100}
	// bar 8: the conflict bar
	candles[8] = candle.Candle{T: 8 * 60_000, O: 100, H: 125, L: 85, C: 110}

	strat := &scriptedEntryStrategy{
		entryBar: 5,
		stopLoss: 90,
		tpPrice:  120,
	}
	cfg := baseConfig()
	cfg.SizingMode = SizingCash
	cfg.CashPerTrade = 100 // entryPrice=100 -> size=1

	e := New(cfg, strat, zerolog.Nop())
	res, err := e.Run(candles, nil)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, position.ExitSL, res.Trades[0].ExitType)
	assert.Equal(t, 90.0, res.Trades[0].ExitPrice)
}

// Scenario 3: deferred exit fills at next bar's open.
func TestScenarioDeferredExitFillsNextOpen(t *testing.T) {
	candles := make([]candle.Candle, 10)
	for i := range candles {
		candles[i] = candle.Candle{T: int64(i) * 60_000, O: 200, H: 205, L: 195, C: 200}
	}
	candles[6] = candle.Candle{T: 6 * 60_000, O: 200, H: 205, L: 195, C: 200}
	candles[8] = candle.Candle{T: 8 * 60_000, O: 195, H: 200, L: 160, C: 165} // close < entry-30
	candles[9] = candle.Candle{T: 9 * 60_000, O: 300, H: 300, L: 295, C: 298}

	strat := &scriptedSignalExitStrategy{entryBar: 6, exitAfterBar: 8, exitThreshold: 170}
	cfg := baseConfig()
	cfg.SizingMode = SizingCash
	cfg.CashPerTrade = 200 // entryPrice=200 -> size=1

	e := New(cfg, strat, zerolog.Nop())
	res, err := e.Run(candles, nil)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, position.ExitSignal, trade.ExitType)
	assert.Equal(t, 200.0, trade.EntryPrice)
	assert.Equal(t, 300.0, trade.ExitPrice)
	assert.Equal(t, 9, trade.ExitBar)
}

// P3: equity-point bar indices never decrease.
func TestInvariantEquityBarMonotonic(t *testing.T) {
	candles := trendingUp(50, 1000, 2)
	strat := &strategy.AlwaysLong{StopDistance: 20}
	e := New(baseConfig(), strat, zerolog.Nop())
	res, err := e.Run(candles, nil)
	require.NoError(t, err)

	for i := 1; i < len(res.Equity); i++ {
		assert.GreaterOrEqual(t, res.Equity[i].BarIndex, res.Equity[i-1].BarIndex)
	}
}

// P2: finalEquity == initialCapital + sum(trade.pnl) within tolerance.
func TestInvariantEquityConsistency(t *testing.T) {
	candles := trendingUp(80, 500, 3)
	strat := &strategy.AlwaysLong{StopDistance: 15}
	cfg := baseConfig()
	e := New(cfg, strat, zerolog.Nop())
	res, err := e.Run(candles, nil)
	require.NoError(t, err)

	sum := 0.0
	for _, tr := range res.Trades {
		sum += tr.PnL
	}
	assert.InDelta(t, cfg.InitialCapital+sum, res.FinalEquity, 1e-6)
}

// P6: force-close at end of data when no SL/TP/signal ever triggers.
func TestInvariantForceCloseAtEndOfData(t *testing.T) {
	candles := make([]candle.Candle, 20)
	for i := range candles {
		candles[i] = candle.Candle{T: int64(i) * 60_000, O: 100, H: 101, L: 99, C: 100}
	}
	strat := &strategy.AlwaysLong{StopDistance: 50} // SL far away, never triggers
	e := New(baseConfig(), strat, zerolog.Nop())
	res, err := e.Run(candles, nil)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, position.ExitEOD, res.Trades[0].ExitType)
	assert.Equal(t, 19, res.Trades[0].ExitBar)
}

// P1: determinism across repeated runs with identical inputs.
func TestInvariantDeterminism(t *testing.T) {
	candles := trendingUp(60, 2000, 4)
	cfg := baseConfig()

	run := func() []position.CompletedTrade {
		strat := &strategy.AlwaysLong{StopDistance: 30}
		e := New(cfg, strat, zerolog.Nop())
		res, err := e.Run(candles, nil)
		require.NoError(t, err)
		return res.Trades
	}

	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

// scriptedEntryStrategy enters exactly once, at entryBar, with a fixed SL
// and single TP, for scenario tests that need precise control over trigger
// prices independent of AlwaysLong's defaults.
type scriptedEntryStrategy struct {
	strategy.NoInit
	strategy.NoExit
	strategy.NoHTF
	entryBar int
	stopLoss float64
	tpPrice  float64
	entered  bool
}

func (s *scriptedEntryStrategy) Name() string                          { return "scripted-entry" }
func (s *scriptedEntryStrategy) Params() map[string]strategy.Parameter { return nil }

// OnCandle decides one bar before the desired fill bar: the engine matches
// a just-enqueued market order at the start of the following bar (Step B
// runs before Step E), so deciding at entryBar-1 yields a fill recorded
// against entryBar, matching the scenario's literal bar indices.
func (s *scriptedEntryStrategy) OnCandle(ctx strategy.Context) *strategy.Signal {
	if s.entered || ctx.Index != s.entryBar-1 {
		return nil
	}
	s.entered = true
	return &strategy.Signal{
		Direction:  strategy.Long,
		StopLoss:   s.stopLoss,
		TakeProfit: []strategy.TakeProfit{{Price: s.tpPrice, PctOfPosition: 1.0}},
		Comment:    "scripted entry",
	}
}

// scriptedSignalExitStrategy enters once at entryBar and signals an exit
// the first bar its close drops below exitThreshold at or after exitAfterBar.
type scriptedSignalExitStrategy struct {
	strategy.NoInit
	strategy.NoHTF
	entryBar      int
	exitAfterBar  int
	exitThreshold float64
	entered       bool
}

func (s *scriptedSignalExitStrategy) Name() string                          { return "scripted-signal-exit" }
func (s *scriptedSignalExitStrategy) Params() map[string]strategy.Parameter { return nil }

// OnCandle decides one bar before the desired entry-fill bar; see the note
// on scriptedEntryStrategy.OnCandle.
func (s *scriptedSignalExitStrategy) OnCandle(ctx strategy.Context) *strategy.Signal {
	if s.entered || ctx.Index != s.entryBar-1 {
		return nil
	}
	s.entered = true
	return &strategy.Signal{
		Direction: strategy.Long,
		StopLoss:  0.01, // far away, never triggers within the test window
		Comment:   "scripted entry",
	}
}

func (s *scriptedSignalExitStrategy) ShouldExit(ctx strategy.Context) *strategy.ExitDecision {
	if ctx.Index >= s.exitAfterBar && ctx.Current().C < s.exitThreshold {
		return &strategy.ExitDecision{Exit: true, Comment: "dropped below threshold"}
	}
	return nil
}
