package stats

import (
	"sort"
	"time"

	"github.com/axton-labs/backtrader/position"
)

// Bucket is the {count, pnl, winRate, profitFactor} tuple reported for every
// dimension breakdown in §4.7.
type Bucket struct {
	Count        int
	PnL          float64
	WinRate      float64
	ProfitFactor float64
}

// FilterSimulation is the counterfactual "what if we had excluded this
// bucket" report named in §4.7.
type FilterSimulation struct {
	Label         string
	TradesRemoved int
	PnLDelta      float64
	PnLAfter      float64
	TradesAfter   int
}

// TradeAnalysis is the full breakdown of a trade ledger across every
// dimension named in §4.7.
type TradeAnalysis struct {
	ByDirection map[position.Direction]Bucket
	ByExitType  map[position.ExitType]Bucket
	ByDayOfWeek map[time.Weekday]Bucket
	ByHour      map[int]Bucket

	BestHour  int
	WorstHour int

	BySession map[string]Bucket

	Best3  []position.CompletedTrade
	Worst3 []position.CompletedTrade

	AvgBarsHeldWinners float64
	AvgBarsHeldLosers  float64

	FilterSimulations []FilterSimulation

	WalkForward *WalkForwardResult
}

func bucketOf(trades []position.CompletedTrade) Bucket {
	m := ComputeMetrics(trades, 0)
	b := Bucket{Count: len(trades), PnL: m.TotalPnL}
	if len(trades) == 0 {
		return b
	}
	b.WinRate = m.WinRate
	b.ProfitFactor = m.ProfitFactor
	return b
}

// session buckets entry hour (UTC) into the four named windows (§4.7).
func session(hour int) string {
	switch {
	case hour >= 0 && hour < 8:
		return "Asia"
	case hour >= 8 && hour < 13:
		return "London"
	case hour >= 13 && hour < 21:
		return "NY"
	default:
		return "Off-peak"
	}
}

// AnalyzeTradeList computes every per-dimension breakdown named in §4.7
// against exit time (UTC) for time-based dimensions.
func AnalyzeTradeList(trades []position.CompletedTrade) TradeAnalysis {
	a := TradeAnalysis{
		ByDirection: map[position.Direction]Bucket{},
		ByExitType:  map[position.ExitType]Bucket{},
		ByDayOfWeek: map[time.Weekday]Bucket{},
		ByHour:      map[int]Bucket{},
		BySession:   map[string]Bucket{},
	}
	if len(trades) == 0 {
		return a
	}

	byDir := map[position.Direction][]position.CompletedTrade{}
	byExit := map[position.ExitType][]position.CompletedTrade{}
	byDow := map[time.Weekday][]position.CompletedTrade{}
	byHour := map[int][]position.CompletedTrade{}
	bySession := map[string][]position.CompletedTrade{}
	var slTrades []position.CompletedTrade

	var winnerBars, loserBars, numWinners, numLosers int

	for _, t := range trades {
		byDir[t.Direction] = append(byDir[t.Direction], t)
		byExit[t.ExitType] = append(byExit[t.ExitType], t)
		if t.ExitType == position.ExitSL {
			slTrades = append(slTrades, t)
		}

		exitTime := time.UnixMilli(t.ExitT).UTC()
		byDow[exitTime.Weekday()] = append(byDow[exitTime.Weekday()], t)
		byHour[exitTime.Hour()] = append(byHour[exitTime.Hour()], t)
		bySession[session(exitTime.Hour())] = append(bySession[session(exitTime.Hour())], t)

		if t.PnL > 0 {
			winnerBars += t.HeldBars
			numWinners++
		} else if t.PnL < 0 {
			loserBars += t.HeldBars
			numLosers++
		}
	}

	for d, ts := range byDir {
		a.ByDirection[d] = bucketOf(ts)
	}
	for e, ts := range byExit {
		a.ByExitType[e] = bucketOf(ts)
	}
	for d, ts := range byDow {
		a.ByDayOfWeek[d] = bucketOf(ts)
	}

	bestHourPnl := -1.0
	worstHourPnl := 1.0
	bestSet, worstSet := false, false
	for h, ts := range byHour {
		b := bucketOf(ts)
		a.ByHour[h] = b
		if !bestSet || b.PnL > bestHourPnl {
			bestHourPnl, a.BestHour, bestSet = b.PnL, h, true
		}
		if !worstSet || b.PnL < worstHourPnl {
			worstHourPnl, a.WorstHour, worstSet = b.PnL, h, true
		}
	}
	for s, ts := range bySession {
		a.BySession[s] = bucketOf(ts)
	}

	sorted := make([]position.CompletedTrade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PnL > sorted[j].PnL })
	a.Best3 = topN(sorted, 3, false)
	a.Worst3 = topN(sorted, 3, true)

	if numWinners > 0 {
		a.AvgBarsHeldWinners = float64(winnerBars) / float64(numWinners)
	}
	if numLosers > 0 {
		a.AvgBarsHeldLosers = float64(loserBars) / float64(numLosers)
	}

	total := ComputeMetrics(trades, 0)
	a.FilterSimulations = append(a.FilterSimulations,
		filterSim("all-sl", slTrades, len(trades), total.TotalPnL),
	)
	for h, ts := range byHour {
		a.FilterSimulations = append(a.FilterSimulations, filterSim(hourLabel(h), ts, len(trades), total.TotalPnL))
	}
	for d, ts := range byDow {
		a.FilterSimulations = append(a.FilterSimulations, filterSim(d.String(), ts, len(trades), total.TotalPnL))
	}
	sort.Slice(a.FilterSimulations, func(i, j int) bool {
		return a.FilterSimulations[i].Label < a.FilterSimulations[j].Label
	})

	if wf := WalkForward(trades); wf != nil {
		a.WalkForward = wf
	}

	return a
}

func topN(sortedDesc []position.CompletedTrade, n int, worst bool) []position.CompletedTrade {
	if len(sortedDesc) == 0 {
		return nil
	}
	if worst {
		start := len(sortedDesc) - n
		if start < 0 {
			start = 0
		}
		rev := make([]position.CompletedTrade, 0, len(sortedDesc)-start)
		for i := len(sortedDesc) - 1; i >= start; i-- {
			rev = append(rev, sortedDesc[i])
		}
		return rev
	}
	if n > len(sortedDesc) {
		n = len(sortedDesc)
	}
	out := make([]position.CompletedTrade, n)
	copy(out, sortedDesc[:n])
	return out
}

func filterSim(label string, bucketTrades []position.CompletedTrade, totalCount int, totalPnl float64) FilterSimulation {
	bucketPnl := 0.0
	for _, t := range bucketTrades {
		bucketPnl += t.PnL
	}
	return FilterSimulation{
		Label:         label,
		TradesRemoved: len(bucketTrades),
		PnLDelta:      -bucketPnl,
		PnLAfter:      totalPnl - bucketPnl,
		TradesAfter:   totalCount - len(bucketTrades),
	}
}

func hourLabel(h int) string {
	return time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("15:00")
}
