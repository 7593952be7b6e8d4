package client

import (
	"testing"

	"github.com/axton-labs/backtrader/candle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateAscendingStopsOnShortPage(t *testing.T) {
	pageSize := 3
	calls := 0
	out, err := paginateAscending(0, 1000, pageSize, func(cursor int64) ([]candle.Candle, error) {
		calls++
		switch calls {
		case 1:
			return []candle.Candle{{T: 0}, {T: 10}, {T: 20}}, nil
		case 2:
			return []candle.Candle{{T: 30}, {T: 40}}, nil // short page, stop
		}
		t.Fatal("should not be called a third time")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, out, 5)
	assert.Equal(t, int64(40), out[len(out)-1].T)
}

func TestPaginateAscendingStopsOnEmptyPage(t *testing.T) {
	out, err := paginateAscending(0, 1000, 10, func(cursor int64) ([]candle.Candle, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPaginateAscendingStopsWhenCursorPassesEnd(t *testing.T) {
	calls := 0
	out, err := paginateAscending(0, 25, 5, func(cursor int64) ([]candle.Candle, error) {
		calls++
		return []candle.Candle{{T: cursor}, {T: cursor + 10}, {T: cursor + 20}, {T: cursor + 30}, {T: cursor + 40}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NotEmpty(t, out)
}

func TestPaginateDescendingReversesPagesToAscendingOrder(t *testing.T) {
	calls := 0
	out, err := paginateDescending(0, 100, 3, func(cursor int64) ([]candle.Candle, error) {
		calls++
		switch calls {
		case 1:
			// newest-first page
			return []candle.Candle{{T: 100}, {T: 90}, {T: 80}}, nil
		}
		return []candle.Candle{{T: 70}, {T: 60}}, nil // short page, stop
	})
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, []int64{60, 70, 80, 90, 100}, []int64{out[0].T, out[1].T, out[2].T, out[3].T, out[4].T})
}

func TestPaginateFixedWindowCoversEntireRangeRegardlessOfPageContent(t *testing.T) {
	var windows [][2]int64
	out, err := paginateFixedWindow(0, 100, 10, 3, func(windowStart, windowEnd int64) ([]candle.Candle, error) {
		windows = append(windows, [2]int64{windowStart, windowEnd})
		return []candle.Candle{{T: windowStart}}, nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	// windowMs = intervalMs(10) * maxCandlesPerPage(3) = 30
	assert.Equal(t, [2]int64{0, 30}, windows[0])
	assert.Equal(t, [2]int64{40, 70}, windows[1])
	assert.Equal(t, [2]int64{80, 100}, windows[2])
}
