package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/axton-labs/backtrader/candle"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// hyperliquidBaseURL is a var rather than a const so tests can point it at
// an httptest server.
var hyperliquidBaseURL = "https://api.hyperliquid.xyz/info"

// HyperliquidClient fetches perpetual klines from Hyperliquid's public info
// endpoint. Each request must carry an explicit [startTime, endTime] window
// rather than a cursor, so fetching uses fixed-window batching.
type HyperliquidClient struct {
	httpClient *http.Client
	log        *logrus.Logger
	opts       Options
}

func NewHyperliquidClient(httpClient *http.Client, log *logrus.Logger) *HyperliquidClient {
	if log == nil {
		log = logrus.New()
	}
	return &HyperliquidClient{httpClient: httpClient, log: log, opts: DefaultOptions(Hyperliquid)}
}

type hyperliquidCandleReq struct {
	Type string `json:"type"`
	Req  struct {
		Coin      string `json:"coin"`
		Interval  string `json:"interval"`
		StartTime int64  `json:"startTime"`
		EndTime   int64  `json:"endTime"`
	} `json:"req"`
}

type hyperliquidCandle struct {
	T int64  `json:"t"`
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V string `json:"v"`
	N int    `json:"n"`
}

func (c *HyperliquidClient) FetchCandles(ctx context.Context, coin string, interval candle.Interval, startMs, endMs int64) ([]candle.Candle, error) {
	tf, err := mapInterval(hyperliquidIntervals, interval, Hyperliquid)
	if err != nil {
		return nil, err
	}
	intervalMs, err := interval.Milliseconds()
	if err != nil {
		return nil, err
	}
	log := c.log.WithField("source", "hyperliquid")

	return paginateFixedWindow(startMs, endMs, intervalMs, c.opts.MaxCandlesPerPage, func(windowStart, windowEnd int64) ([]candle.Candle, error) {
		var reqBody hyperliquidCandleReq
		reqBody.Type = "candleSnapshot"
		reqBody.Req.Coin = coin
		reqBody.Req.Interval = tf
		reqBody.Req.StartTime = windowStart
		reqBody.Req.EndTime = windowEnd

		payload, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("client: hyperliquid encode request: %w", err)
		}

		httpReq, err := http.NewRequest(http.MethodPost, hyperliquidBaseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("client: hyperliquid build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		body, err := doRequest(ctx, c.httpClient, log, httpReq, "hyperliquid")
		if err != nil {
			return nil, fmt.Errorf("client: hyperliquid fetch: %w", err)
		}

		var parsed []hyperliquidCandle
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("client: hyperliquid decode: %w", err)
		}

		out := make([]candle.Candle, 0, len(parsed))
		for _, raw := range parsed {
			cdl, err := hyperliquidToCandle(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, cdl)
		}
		return out, nil
	})
}

func hyperliquidToCandle(raw hyperliquidCandle) (candle.Candle, error) {
	o, err := decimal.NewFromString(raw.O)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: hyperliquid parse open: %w", err)
	}
	h, err := decimal.NewFromString(raw.H)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: hyperliquid parse high: %w", err)
	}
	l, err := decimal.NewFromString(raw.L)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: hyperliquid parse low: %w", err)
	}
	cl, err := decimal.NewFromString(raw.C)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: hyperliquid parse close: %w", err)
	}
	v, err := decimal.NewFromString(raw.V)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: hyperliquid parse volume: %w", err)
	}
	return candle.Candle{T: raw.T, O: o.InexactFloat64(), H: h.InexactFloat64(), L: l.InexactFloat64(), C: cl.InexactFloat64(), V: v.InexactFloat64(), N: raw.N}, nil
}
