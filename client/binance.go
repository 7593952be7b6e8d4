package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/axton-labs/backtrader/candle"
	"github.com/sirupsen/logrus"
)

// binanceIntervals maps our interval vocabulary onto go-binance's kline
// interval strings.
var binanceIntervals = map[candle.Interval]string{
	candle.Interval1m:  "1m",
	candle.Interval5m:  "5m",
	candle.Interval15m: "15m",
	candle.Interval30m: "30m",
	candle.Interval1h:  "1h",
	candle.Interval2h:  "2h",
	candle.Interval4h:  "4h",
	candle.Interval1d:  "1d",
}

// BinanceClient fetches candles using the official go-binance SDK, added as
// a supplemental fifth source beyond the ones the spec names directly.
type BinanceClient struct {
	sdk  *binance.Client
	log  *logrus.Logger
	opts Options
}

func NewBinanceClient(sdk *binance.Client, log *logrus.Logger) *BinanceClient {
	if log == nil {
		log = logrus.New()
	}
	return &BinanceClient{sdk: sdk, log: log, opts: DefaultOptions(Binance)}
}

func (c *BinanceClient) FetchCandles(ctx context.Context, coin string, interval candle.Interval, startMs, endMs int64) ([]candle.Candle, error) {
	tf, ok := binanceIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("client: binance does not support interval %q", interval)
	}
	log := c.log.WithField("source", "binance")

	return paginateAscending(startMs, endMs, c.opts.MaxCandlesPerPage, func(cursor int64) ([]candle.Candle, error) {
		klines, err := c.sdk.NewKlinesService().
			Symbol(coin).
			Interval(tf).
			StartTime(cursor).
			EndTime(endMs).
			Limit(c.opts.MaxCandlesPerPage).
			Do(ctx)
		if err != nil {
			log.WithError(err).Warn("binance klines request failed")
			return nil, fmt.Errorf("client: binance fetch: %w", err)
		}

		out := make([]candle.Candle, 0, len(klines))
		for _, k := range klines {
			cdl, err := binanceKlineToCandle(k)
			if err != nil {
				return nil, err
			}
			out = append(out, cdl)
		}
		return out, nil
	})
}

func binanceKlineToCandle(k *binance.Kline) (candle.Candle, error) {
	o, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: binance parse open: %w", err)
	}
	h, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: binance parse high: %w", err)
	}
	l, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: binance parse low: %w", err)
	}
	cl, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: binance parse close: %w", err)
	}
	v, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("client: binance parse volume: %w", err)
	}
	return candle.Candle{
		T: k.OpenTime,
		O: o,
		H: h,
		L: l,
		C: cl,
		V: v,
		N: int(k.TradeNum),
	}, nil
}
