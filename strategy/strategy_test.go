package strategy

import (
	"testing"

	"github.com/axton-labs/backtrader/candle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandles(closes ...float64) []candle.Candle {
	out := make([]candle.Candle, len(closes))
	for i, c := range closes {
		out[i] = candle.Candle{T: int64(i) * 60_000, O: c, H: c, L: c, C: c}
	}
	return out
}

func TestAlwaysLongEntersOnceThenStaysFlat(t *testing.T) {
	s := &AlwaysLong{StopDistance: 5}
	candles := mkCandles(100, 101, 102)

	sig := s.OnCandle(Context{Candles: candles, Index: 0})
	require.NotNil(t, sig)
	assert.Equal(t, Long, sig.Direction)
	assert.Equal(t, 95.0, sig.StopLoss)

	sig2 := s.OnCandle(Context{Candles: candles, Index: 1})
	assert.Nil(t, sig2)
}

func TestAlwaysLongNeverExitsViaShouldExit(t *testing.T) {
	s := &AlwaysLong{StopDistance: 5}
	decision := s.ShouldExit(Context{})
	assert.Nil(t, decision)
}

func TestThresholdStrategyEntersAboveThreshold(t *testing.T) {
	s := &ThresholdStrategy{Threshold: 100, StopDistance: 2, RiskReward: 2}
	candles := mkCandles(99, 101)

	assert.Nil(t, s.OnCandle(Context{Candles: candles, Index: 0}))

	sig := s.OnCandle(Context{Candles: candles, Index: 1})
	require.NotNil(t, sig)
	assert.Equal(t, 99.0, sig.StopLoss)
	require.Len(t, sig.TakeProfit, 1)
	assert.Equal(t, 105.0, sig.TakeProfit[0].Price) // 101 + 2*2
}

func TestThresholdStrategyExitsBelowExitThreshold(t *testing.T) {
	s := &ThresholdStrategy{ExitThreshold: 95}
	candles := mkCandles(94)

	decision := s.ShouldExit(Context{Candles: candles, Index: 0})
	require.NotNil(t, decision)
	assert.True(t, decision.Exit)
}

func TestThresholdStrategyParamsExposeOptimizableMetadata(t *testing.T) {
	s := &ThresholdStrategy{Threshold: 100, ExitThreshold: 95, StopDistance: 2, RiskReward: 2}
	params := s.Params()
	require.Contains(t, params, "threshold")
	assert.True(t, params["threshold"].Optimizable)
	assert.Equal(t, 100.0, params["threshold"].Value)
}
