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

func TestBybitFetchCandlesParsesNewestFirstPageIntoAscendingCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"retCode": 0,
			"retMsg": "OK",
			"result": {
				"list": [
					["2000", "101", "102", "99", "101.5", "10", "1000"],
					["1000", "100", "101", "98", "100.5", "8", "800"]
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewBybitClient(srv.Client(), nil)
	c.opts.MaxCandlesPerPage = 100
	restoreBybitURL := bybitBaseURL
	bybitBaseURL = srv.URL
	t.Cleanup(func() { bybitBaseURL = restoreBybitURL })

	out, err := c.FetchCandles(context.Background(), "BTCUSDT", candle.Interval1h, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1000), out[0].T)
	assert.Equal(t, 100.0, out[0].O)
	assert.Equal(t, int64(2000), out[1].T)
	assert.Equal(t, 101.5, out[1].C)
}

func TestBybitFetchCandlesUnsupportedIntervalErrors(t *testing.T) {
	c := NewBybitClient(http.DefaultClient, nil)
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", candle.Interval("bogus"), 0, 1000)
	assert.ErrorContains(t, err, "bybit")
}

func TestBybitFetchCandlesPropagatesAPILevelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode": 10001, "retMsg": "invalid symbol", "result": {"list": []}}`))
	}))
	defer srv.Close()

	c := NewBybitClient(srv.Client(), nil)
	restoreBybitURL := bybitBaseURL
	bybitBaseURL = srv.URL
	t.Cleanup(func() { bybitBaseURL = restoreBybitURL })

	_, err := c.FetchCandles(context.Background(), "NOPE", candle.Interval1h, 0, 1000)
	assert.ErrorContains(t, err, "invalid symbol")
}
