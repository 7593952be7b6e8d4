package stats

import (
	"math"
	"testing"

	"github.com/axton-labs/backtrader/position"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(pnl, rMultiple float64) position.CompletedTrade {
	return position.CompletedTrade{PnL: pnl, RMultiple: rMultiple}
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(nil, 0)
	assert.True(t, math.IsNaN(m.ProfitFactor))
	assert.True(t, math.IsNaN(m.WinRate))
	assert.True(t, math.IsNaN(m.AvgR))
	assert.Equal(t, 0.0, m.TotalPnL)
}

func TestComputeMetrics_NoLosses(t *testing.T) {
	m := ComputeMetrics([]position.CompletedTrade{trade(10, 1), trade(5, 0.5)}, 0)
	assert.True(t, math.IsInf(m.ProfitFactor, 1))
	assert.Equal(t, 100.0, m.WinRate)
}

func TestComputeMetrics_NoWins(t *testing.T) {
	m := ComputeMetrics([]position.CompletedTrade{trade(-10, -1), trade(-5, -0.5)}, 0)
	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.Equal(t, 0.0, m.WinRate)
}

func TestComputeMetrics_Mixed(t *testing.T) {
	m := ComputeMetrics([]position.CompletedTrade{trade(10, 1), trade(-5, -0.5)}, 3.5)
	require.Equal(t, 2, m.NumTrades)
	assert.Equal(t, 5.0, m.TotalPnL)
	assert.InDelta(t, 2.0, m.ProfitFactor, 1e-9)
	assert.Equal(t, 50.0, m.WinRate)
	assert.InDelta(t, 0.25, m.AvgR, 1e-9)
	assert.Equal(t, 3.5, m.MaxDrawdownPct)
}

// P10: metrics roundtrip — zero losses -> +Inf PF, zero wins -> 0 PF,
// empty -> {pf,wr,avgR} all NaN, totalPnl = 0.
func TestComputeMetrics_P10(t *testing.T) {
	empty := ComputeMetrics(nil, 0)
	assert.Equal(t, 0.0, empty.TotalPnL)

	noLosses := ComputeMetrics([]position.CompletedTrade{trade(1, 1)}, 0)
	assert.True(t, math.IsInf(noLosses.ProfitFactor, 1))

	noWins := ComputeMetrics([]position.CompletedTrade{trade(-1, -1)}, 0)
	assert.Equal(t, 0.0, noWins.ProfitFactor)
}
