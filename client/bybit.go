package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/axton-labs/backtrader/candle"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// bybitBaseURL is a var rather than a const so tests can point it at an
// httptest server.
var bybitBaseURL = "https://api.bybit.com"

// BybitClient fetches perpetual-futures klines from Bybit's public v5
// market-data REST endpoint directly via net/http, matching the teacher's
// own un-SDK'd approach to market data (market/historical.go).
type BybitClient struct {
	httpClient *http.Client
	log        *logrus.Logger
	opts       Options
}

func NewBybitClient(httpClient *http.Client, log *logrus.Logger) *BybitClient {
	if log == nil {
		log = logrus.New()
	}
	return &BybitClient{httpClient: httpClient, log: log, opts: DefaultOptions(Bybit)}
}

type bybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]string `json:"list"` // newest-first: [start, open, high, low, close, volume, turnover]
	} `json:"result"`
}

// FetchCandles implements cache.Fetcher. Bybit's kline endpoint returns
// pages newest-first, so fetching uses the descending-cursor strategy.
func (c *BybitClient) FetchCandles(ctx context.Context, coin string, interval candle.Interval, startMs, endMs int64) ([]candle.Candle, error) {
	tf, err := mapInterval(bybitIntervals, interval, Bybit)
	if err != nil {
		return nil, err
	}
	log := c.log.WithField("source", "bybit")

	return paginateDescending(startMs, endMs, c.opts.MaxCandlesPerPage, func(cursor int64) ([]candle.Candle, error) {
		q := url.Values{}
		q.Set("category", "linear")
		q.Set("symbol", coin)
		q.Set("interval", tf)
		q.Set("start", strconv.FormatInt(startMs, 10))
		q.Set("end", strconv.FormatInt(cursor, 10))
		q.Set("limit", strconv.Itoa(c.opts.MaxCandlesPerPage))

		req, err := http.NewRequest(http.MethodGet, bybitBaseURL+"/v5/market/kline?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("client: bybit build request: %w", err)
		}

		body, err := doRequest(ctx, c.httpClient, log, req, "bybit")
		if err != nil {
			return nil, fmt.Errorf("client: bybit fetch: %w", err)
		}

		var parsed bybitKlineResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("client: bybit decode: %w", err)
		}
		if parsed.RetCode != 0 {
			return nil, fmt.Errorf("client: bybit API error %d: %s", parsed.RetCode, parsed.RetMsg)
		}

		out := make([]candle.Candle, 0, len(parsed.Result.List))
		for _, row := range parsed.Result.List {
			if len(row) < 6 {
				continue
			}
			c, err := bybitRowToCandle(row)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	})
}

func bybitRowToCandle(row []string) (candle.Candle, error) {
	t, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: bybit parse timestamp: %w", err)
	}
	o, err := decimal.NewFromString(row[1])
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: bybit parse open: %w", err)
	}
	h, err := decimal.NewFromString(row[2])
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: bybit parse high: %w", err)
	}
	l, err := decimal.NewFromString(row[3])
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: bybit parse low: %w", err)
	}
	cl, err := decimal.NewFromString(row[4])
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: bybit parse close: %w", err)
	}
	v, err := decimal.NewFromString(row[5])
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: bybit parse volume: %w", err)
	}
	return candle.Candle{
		T: t,
		O: o.InexactFloat64(),
		H: h.InexactFloat64(),
		L: l.InexactFloat64(),
		C: cl.InexactFloat64(),
		V: v.InexactFloat64(),
	}, nil
}
