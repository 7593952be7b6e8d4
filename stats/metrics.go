// Package stats implements the Metrics & Analysis component (C6): pure
// functions that reduce a completed-trade ledger into summary statistics
// and per-dimension breakdowns. Nothing in this package mutates its input
// or depends on the engine.
package stats

import (
	"math"

	"github.com/axton-labs/backtrader/position"
)

// Metrics is the summary produced by ComputeMetrics (§4.7).
//
// ProfitFactor and WinRate and AvgR use math.Inf(1) / NaN conventions rather
// than pointers: an empty ledger reports NaN for all three (test with
// math.IsNaN), a ledger with zero losses reports +Inf profit factor, and a
// ledger with zero wins reports a profit factor of 0.
type Metrics struct {
	TotalPnL       float64
	NumTrades      int
	GrossProfit    float64
	GrossLoss      float64
	ProfitFactor   float64
	WinRate        float64
	AvgR           float64
	MaxDrawdownPct float64
}

// ComputeMetrics reduces a trade ledger to its summary statistics.
// maxDrawdownPct is carried through from the engine's equity curve (§4.7)
// rather than recomputed here, since this package never sees equity points.
func ComputeMetrics(trades []position.CompletedTrade, maxDrawdownPct float64) Metrics {
	m := Metrics{MaxDrawdownPct: maxDrawdownPct}

	if len(trades) == 0 {
		m.ProfitFactor = math.NaN()
		m.WinRate = math.NaN()
		m.AvgR = math.NaN()
		return m
	}

	m.NumTrades = len(trades)

	var wins int
	var rSum float64
	for _, t := range trades {
		m.TotalPnL += t.PnL
		rSum += t.RMultiple
		if t.PnL > 0 {
			m.GrossProfit += t.PnL
			wins++
		} else if t.PnL < 0 {
			m.GrossLoss += -t.PnL
		}
	}

	switch {
	case m.GrossLoss == 0 && m.GrossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	case m.GrossProfit == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	}

	m.WinRate = 100 * float64(wins) / float64(m.NumTrades)
	m.AvgR = rSum / float64(m.NumTrades)

	return m
}
