package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/axton-labs/backtrader/candle"
	"github.com/sirupsen/logrus"
)

// coinbaseVariant distinguishes the spot and perpetual product catalogs,
// which share an API shape but use different base URLs and product-id
// suffixes.
type coinbaseVariant struct {
	source        Source
	baseURL       string
	productSuffix string
}

var (
	coinbaseSpotVariant = coinbaseVariant{source: Coinbase, baseURL: "https://api.exchange.coinbase.com", productSuffix: "-USD"}
	coinbasePerpVariant = coinbaseVariant{source: CoinbasePerp, baseURL: "https://api.exchange.coinbase.com", productSuffix: "-PERP-INTX"}
)

// CoinbaseClient fetches candles from Coinbase Exchange's public product
// candles endpoint via net/http, for either the spot or perpetual catalog.
type CoinbaseClient struct {
	httpClient *http.Client
	log        *logrus.Logger
	opts       Options
	variant    coinbaseVariant
}

func NewCoinbaseClient(httpClient *http.Client, log *logrus.Logger) *CoinbaseClient {
	return newCoinbaseClient(httpClient, log, coinbaseSpotVariant)
}

func NewCoinbasePerpClient(httpClient *http.Client, log *logrus.Logger) *CoinbaseClient {
	return newCoinbaseClient(httpClient, log, coinbasePerpVariant)
}

func newCoinbaseClient(httpClient *http.Client, log *logrus.Logger, variant coinbaseVariant) *CoinbaseClient {
	if log == nil {
		log = logrus.New()
	}
	return &CoinbaseClient{httpClient: httpClient, log: log, opts: DefaultOptions(variant.source), variant: variant}
}

// coinbaseRow is [time, low, high, open, close, volume].
type coinbaseRow [6]float64

func (c *CoinbaseClient) FetchCandles(ctx context.Context, coin string, interval candle.Interval, startMs, endMs int64) ([]candle.Candle, error) {
	granularity, ok := coinbaseGranularitySeconds[interval]
	if !ok {
		return nil, fmt.Errorf("client: %s does not support interval %q", c.variant.source, interval)
	}
	intervalMs := granularity * 1000
	log := c.log.WithField("source", string(c.variant.source))
	productID := coin + c.variant.productSuffix

	return paginateAscending(startMs, endMs, c.opts.MaxCandlesPerPage, func(cursor int64) ([]candle.Candle, error) {
		windowEnd := cursor + intervalMs*int64(c.opts.MaxCandlesPerPage)
		if windowEnd > endMs {
			windowEnd = endMs
		}

		q := url.Values{}
		q.Set("start", formatUnixSeconds(cursor))
		q.Set("end", formatUnixSeconds(windowEnd))
		q.Set("granularity", strconv.FormatInt(granularity, 10))

		req, err := http.NewRequest(http.MethodGet, c.variant.baseURL+"/products/"+productID+"/candles?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("client: %s build request: %w", c.variant.source, err)
		}

		body, err := doRequest(ctx, c.httpClient, log, req, "coinbase")
		if err != nil {
			return nil, fmt.Errorf("client: %s fetch: %w", c.variant.source, err)
		}

		var rows []coinbaseRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("client: %s decode: %w", c.variant.source, err)
		}

		// Coinbase returns newest-first; reverse to ascending before
		// returning so the shared ascending-cursor pager can advance
		// past the last (now latest) element correctly.
		out := make([]candle.Candle, len(rows))
		for i, row := range rows {
			out[len(rows)-1-i] = candle.Candle{
				T: int64(row[0]) * 1000,
				L: row[1],
				H: row[2],
				O: row[3],
				C: row[4],
				V: row[5],
			}
		}
		return out, nil
	})
}

func formatUnixSeconds(ms int64) string {
	return strconv.FormatInt(ms/1000, 10)
}
