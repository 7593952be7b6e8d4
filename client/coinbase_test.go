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

func TestCoinbaseFetchCandlesReversesNewestFirstRowsToAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// [time, low, high, open, close, volume], newest-first.
		w.Write([]byte(`[
			[120, 99, 102, 100, 101, 5],
			[60, 98, 101, 99, 100, 4]
		]`))
	}))
	defer srv.Close()

	restore := coinbaseSpotVariant.baseURL
	coinbaseSpotVariant.baseURL = srv.URL
	t.Cleanup(func() { coinbaseSpotVariant.baseURL = restore })

	c := NewCoinbaseClient(srv.Client(), nil)
	out, err := c.FetchCandles(context.Background(), "BTC", candle.Interval1m, 60000, 120000)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(60000), out[0].T)
	assert.Equal(t, 99.0, out[0].O)
	assert.Equal(t, int64(120000), out[1].T)
	assert.Equal(t, 101.0, out[1].C)
}

func TestCoinbasePerpUsesDistinctProductSuffix(t *testing.T) {
	var sawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	restore := coinbasePerpVariant.baseURL
	coinbasePerpVariant.baseURL = srv.URL
	t.Cleanup(func() { coinbasePerpVariant.baseURL = restore })

	c := NewCoinbasePerpClient(srv.Client(), nil)
	_, err := c.FetchCandles(context.Background(), "BTC", candle.Interval1h, 0, 3600000)
	require.NoError(t, err)
	assert.Contains(t, sawPath, "BTC-PERP-INTX")
}

func TestCoinbaseFetchCandlesUnsupportedIntervalErrors(t *testing.T) {
	c := NewCoinbaseClient(http.DefaultClient, nil)
	_, err := c.FetchCandles(context.Background(), "BTC", candle.Interval("bogus"), 0, 1000)
	assert.ErrorContains(t, err, "coinbase")
}
