package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axton-labs/backtrader/candle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperliquidFetchCandlesDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"t": 1000, "o": "100", "h": "101", "l": "99", "c": "100.5", "v": "12", "n": 4},
			{"t": 1060000, "o": "100.5", "h": "102", "l": "99.5", "c": "101", "v": "9", "n": 3}
		]`))
	}))
	defer srv.Close()

	c := NewHyperliquidClient(srv.Client(), nil)
	restore := hyperliquidBaseURL
	hyperliquidBaseURL = srv.URL
	t.Cleanup(func() { hyperliquidBaseURL = restore })

	out, err := c.FetchCandles(context.Background(), "BTC", candle.Interval1m, 1000, 1060000)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 100.0, out[0].O)
	assert.Equal(t, 4, out[0].N)
	assert.Equal(t, 101.0, out[1].C)
}

func TestHyperliquidFetchCandlesUnsupportedIntervalErrors(t *testing.T) {
	c := NewHyperliquidClient(http.DefaultClient, nil)
	_, err := c.FetchCandles(context.Background(), "BTC", candle.Interval("bogus"), 0, 1000)
	assert.ErrorContains(t, err, "hyperliquid")
}
