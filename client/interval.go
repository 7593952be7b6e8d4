package client

import (
	"fmt"

	"github.com/axton-labs/backtrader/candle"
)

// bybitIntervals maps the canonical interval to Bybit's kline "interval"
// query parameter (minutes as a string, or D/W/M).
var bybitIntervals = map[candle.Interval]string{
	candle.Interval1m:  "1",
	candle.Interval3m:  "3",
	candle.Interval5m:  "5",
	candle.Interval15m: "15",
	candle.Interval30m: "30",
	candle.Interval1h:  "60",
	candle.Interval2h:  "120",
	candle.Interval4h:  "240",
	candle.Interval1d:  "D",
	candle.Interval1w:  "W",
	candle.Interval1M:  "M",
}

// hyperliquidIntervals maps to Hyperliquid's candle snapshot interval names.
var hyperliquidIntervals = map[candle.Interval]string{
	candle.Interval1m:  "1m",
	candle.Interval3m:  "3m",
	candle.Interval5m:  "5m",
	candle.Interval15m: "15m",
	candle.Interval30m: "30m",
	candle.Interval1h:  "1h",
	candle.Interval2h:  "2h",
	candle.Interval4h:  "4h",
	candle.Interval8h:  "8h",
	candle.Interval12h: "12h",
	candle.Interval1d:  "1d",
	candle.Interval3d:  "3d",
	candle.Interval1w:  "1w",
	candle.Interval1M:  "1M",
}

// coinbaseGranularitySeconds maps to the granularity, in seconds, of the
// Coinbase Exchange product-candles endpoint coinbase.go calls.
var coinbaseGranularitySeconds = map[candle.Interval]int64{
	candle.Interval1m:  60,
	candle.Interval5m:  300,
	candle.Interval15m: 900,
	candle.Interval30m: 1800,
	candle.Interval1h:  3600,
	candle.Interval2h:  7200,
	candle.Interval4h:  14400,
	candle.Interval1d:  86400,
}

func mapInterval(table map[candle.Interval]string, iv candle.Interval, source Source) (string, error) {
	v, ok := table[iv]
	if !ok {
		return "", fmt.Errorf("client: %s does not support interval %q", source, iv)
	}
	return v, nil
}
