// Package candle defines the canonical OHLCV bar and the set of supported
// aggregation intervals shared by every other component in the module.
package candle

import "fmt"

// Candle is an immutable OHLCV bar. Timestamp is ms since epoch, aligned to
// the start of its interval.
type Candle struct {
	T int64   // open time, ms since epoch
	O float64 // open
	H float64 // high
	L float64 // low
	C float64 // close
	V float64 // volume
	N int     // trade count, 0 when the source omits it
}

// Valid reports whether the candle satisfies the OHLC ordering invariant:
// low <= open,close <= high and high >= low.
func (c Candle) Valid() bool {
	if c.H < c.L {
		return false
	}
	if c.O < c.L || c.O > c.H {
		return false
	}
	if c.C < c.L || c.C > c.H {
		return false
	}
	return true
}

// Interval is one of the closed set of supported candle intervals.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

const (
	minuteMs = int64(60_000)
	hourMs   = 60 * minuteMs
	dayMs    = 24 * hourMs
	weekMs   = 7 * dayMs
	monthMs  = 30 * dayMs // approximation used for aggregation arithmetic only
)

var intervalMs = map[Interval]int64{
	Interval1m:  1 * minuteMs,
	Interval3m:  3 * minuteMs,
	Interval5m:  5 * minuteMs,
	Interval15m: 15 * minuteMs,
	Interval30m: 30 * minuteMs,
	Interval1h:  1 * hourMs,
	Interval2h:  2 * hourMs,
	Interval4h:  4 * hourMs,
	Interval8h:  8 * hourMs,
	Interval12h: 12 * hourMs,
	Interval1d:  1 * dayMs,
	Interval3d:  3 * dayMs,
	Interval1w:  1 * weekMs,
	Interval1M:  1 * monthMs,
}

// Milliseconds returns the duration of one bar of this interval, or an error
// if the interval is not one of the supported names.
func (iv Interval) Milliseconds() (int64, error) {
	ms, ok := intervalMs[iv]
	if !ok {
		return 0, fmt.Errorf("candle: unknown interval %q", iv)
	}
	return ms, nil
}

// MustMilliseconds panics on an unknown interval; used only where the
// interval has already been validated upstream (e.g. from the closed enum).
func (iv Interval) MustMilliseconds() int64 {
	ms, err := iv.Milliseconds()
	if err != nil {
		panic(err)
	}
	return ms
}

// Valid reports whether iv is one of the supported interval names.
func (iv Interval) Valid() bool {
	_, ok := intervalMs[iv]
	return ok
}
