// Package client implements the Candle Clients (C5): paginated upstream
// fetchers with retry/backoff, normalized to the canonical Candle shape.
// Each upstream is a distinct adapter satisfying cache.Fetcher, dispatched
// through the tagged Source variant.
package client

import "github.com/axton-labs/backtrader/candle"

// Source is the tagged variant of supported upstream candle providers.
type Source string

const (
	Bybit        Source = "bybit"
	Hyperliquid  Source = "hyperliquid"
	Coinbase     Source = "coinbase"
	CoinbasePerp Source = "coinbase_perp"
	Binance      Source = "binance"
)

// Options configures a single fetch call: inter-request pacing and the
// maximum bars per page, both of which vary per source.
type Options struct {
	RequestDelayMs  int
	MaxCandlesPerPage int
}

// DefaultOptions returns the documented default request pacing (200-500ms
// range, §4.6) for a source.
func DefaultOptions(s Source) Options {
	switch s {
	case Bybit:
		return Options{RequestDelayMs: 200, MaxCandlesPerPage: 1000}
	case Hyperliquid:
		return Options{RequestDelayMs: 300, MaxCandlesPerPage: 500}
	case Coinbase, CoinbasePerp:
		return Options{RequestDelayMs: 350, MaxCandlesPerPage: 300}
	case Binance:
		return Options{RequestDelayMs: 250, MaxCandlesPerPage: 1000}
	default:
		return Options{RequestDelayMs: 500, MaxCandlesPerPage: 200}
	}
}

// dedupAscending drops duplicate timestamps (dedup key = t) from an
// ascending-sorted candle slice, keeping the first occurrence.
func dedupAscending(in []candle.Candle) []candle.Candle {
	out := in[:0:0]
	var lastT int64
	first := true
	for _, c := range in {
		if !first && c.T == lastT {
			continue
		}
		out = append(out, c)
		lastT = c.T
		first = false
	}
	return out
}
