package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPositionThenIsFlatFalse(t *testing.T) {
	p := New()
	assert.True(t, p.IsFlat())

	err := p.OpenPosition(Long, Fill{Price: 100, Size: 2, T: 0}, 5, 0, "entry")
	require.NoError(t, err)
	assert.False(t, p.IsFlat())
	assert.Equal(t, 100.0, p.EntryPrice())
	assert.Equal(t, 2.0, p.Size())
}

func TestOpenPositionWhileOpenErrors(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 1}, 5, 0, ""))
	err := p.OpenPosition(Long, Fill{Price: 101, Size: 1}, 5, 1, "")
	assert.Error(t, err)
}

func TestUpdateMtmLong(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 2}, 5, 0, ""))
	p.UpdateMtm(110)
	assert.Equal(t, 20.0, p.MtmPnL())
}

func TestUpdateMtmShort(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Short, Fill{Price: 100, Size: 2}, 5, 0, ""))
	p.UpdateMtm(90)
	assert.Equal(t, 20.0, p.MtmPnL())
}

func TestUpdateMtmNoopWhenFlat(t *testing.T) {
	p := New()
	p.UpdateMtm(123) // must not panic
	assert.Equal(t, 0.0, p.MtmPnL())
}

func TestFullCloseProducesTradeAndFlat(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 1, Fee: 0.1, T: 0}, 10, 0, "long entry"))

	trade, err := p.ClosePosition(Fill{Price: 120, Size: 1, Fee: 0.1, T: 5}, 5, ExitSL, "stopped")
	require.NoError(t, err)
	assert.True(t, p.IsFlat())
	assert.Equal(t, 1.0, trade.Size)
	assert.InDelta(t, 19.8, trade.PnL, 1e-9) // 20 - 0.1 entry - 0.1 exit
	assert.Equal(t, 5, trade.HeldBars)
	assert.Equal(t, "long entry", trade.EntryComment)
	assert.Equal(t, "stopped", trade.ExitComment)
	assert.Equal(t, ExitSL, trade.ExitType)
}

func TestCloseWhileFlatErrors(t *testing.T) {
	p := New()
	_, err := p.ClosePosition(Fill{Price: 100, Size: 1}, 0, ExitSL, "")
	assert.Error(t, err)
}

func TestRMultipleUndefinedWhenStopDistanceZero(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 1}, 0, 0, ""))
	trade, err := p.ClosePosition(Fill{Price: 110, Size: 1}, 1, ExitSignal, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, trade.RMultiple)
}

func TestRMultipleComputedFromStopDistance(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 2}, 5, 0, ""))
	trade, err := p.ClosePosition(Fill{Price: 110, Size: 2}, 1, ExitSignal, "")
	require.NoError(t, err)
	// pnl = 20, stopDistance*size = 10 -> R = 2
	assert.InDelta(t, 2.0, trade.RMultiple, 1e-9)
}

func TestPartialCloseLeavesRemainderOpen(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 4, Fee: 0.4}, 5, 0, "entry"))

	trade, err := p.PartialClose(Fill{Price: 110, Size: 1, Fee: 0.1}, 1, ExitType("tp1"), "tp1 hit")
	require.NoError(t, err)
	assert.False(t, p.IsFlat())
	assert.Equal(t, 3.0, p.Size())
	assert.Equal(t, 1.0, trade.Size)
	assert.InDelta(t, 9.9, trade.PnL, 1e-9) // 10 - 0.1 exit fee, entry fee not re-apportioned

	final, err := p.ClosePosition(Fill{Price: 120, Size: 3, Fee: 0.3}, 2, ExitEOD, "eod")
	require.NoError(t, err)
	assert.True(t, p.IsFlat())
	// gross on remaining 3 = 60, minus exit fee 0.3, minus entry fee 0.4 (charged once), plus partial pnl 9.9
	assert.InDelta(t, 60-0.3-0.4+9.9, final.PnL, 1e-9)
}

func TestPartialCloseSizeExceedsOpenErrors(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 1}, 5, 0, ""))
	_, err := p.PartialClose(Fill{Price: 100, Size: 2}, 1, ExitType("tp1"), "")
	assert.Error(t, err)
}

func TestPartialCloseWhileFlatErrors(t *testing.T) {
	p := New()
	_, err := p.PartialClose(Fill{Price: 100, Size: 1}, 0, ExitType("tp1"), "")
	assert.Error(t, err)
}

func TestGetCompletedTradesAccumulates(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 2}, 5, 0, ""))
	_, err := p.PartialClose(Fill{Price: 110, Size: 1}, 1, ExitType("tp1"), "")
	require.NoError(t, err)
	_, err = p.ClosePosition(Fill{Price: 120, Size: 1}, 2, ExitEOD, "")
	require.NoError(t, err)

	trades := p.GetCompletedTrades()
	require.Len(t, trades, 2)
}

func TestAfterFullCloseNoFurtherFillsWithoutReopen(t *testing.T) {
	p := New()
	require.NoError(t, p.OpenPosition(Long, Fill{Price: 100, Size: 1}, 5, 0, ""))
	_, err := p.ClosePosition(Fill{Price: 110, Size: 1}, 1, ExitEOD, "")
	require.NoError(t, err)
	assert.True(t, p.IsFlat())

	_, err = p.ClosePosition(Fill{Price: 110, Size: 1}, 2, ExitEOD, "")
	assert.Error(t, err)

	_, err = p.PartialClose(Fill{Price: 110, Size: 1}, 2, ExitType("tp1"), "")
	assert.Error(t, err)
}
