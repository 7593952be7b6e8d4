// Package engine implements the bar-driven Execution Engine (C1): the
// deterministic per-bar state machine that matches resting orders, opens
// and closes positions, enforces cooldowns and daily risk limits, and
// emits a completed-trade ledger plus equity curve.
package engine

import (
	"fmt"

	"github.com/axton-labs/backtrader/candle"
	"github.com/axton-labs/backtrader/order"
	"github.com/axton-labs/backtrader/position"
	"github.com/axton-labs/backtrader/strategy"
	"github.com/rs/zerolog"
)

// SizingMode picks how entry size is computed.
type SizingMode string

const (
	SizingRisk SizingMode = "risk"
	SizingCash SizingMode = "cash"
)

// Config is the immutable per-run configuration (BacktestConfig, §3).
type Config struct {
	InitialCapital float64

	SizingMode      SizingMode
	RiskPerTradeUsd float64
	CashPerTrade    float64

	SlippageBps   float64
	CommissionPct float64

	CooldownBars         int
	MaxConsecutiveLosses int
	MaxDailyLossR        float64
	MaxTradesPerDay      int
	MaxGlobalTradesDay   int
}

// EquityPoint is one sample of the running equity curve.
type EquityPoint struct {
	T           int64
	BarIndex    int
	Equity      float64
	Peak        float64
	DrawdownPct float64
}

// Result is everything the engine produces from one run.
type Result struct {
	Trades         []position.CompletedTrade
	Equity         []EquityPoint
	TotalPnL       float64
	MaxDrawdownPct float64
	FinalEquity    float64
	BarsProcessed  int
}

// Engine drives one deterministic backtest run of a single strategy against
// a single candle series.
type Engine struct {
	cfg    Config
	om     *order.Manager
	pos    *position.Position
	strat  strategy.Strategy
	logger zerolog.Logger

	equity     float64
	peak       float64
	dailyPnl   float64
	tradesToday int
	barsSinceExit int
	consecutiveLosses int
	lastDay    int64

	equityPts []EquityPoint
}

// New constructs an engine for one run. logger may be the zero value
// (zerolog.Logger{}), which discards all events.
func New(cfg Config, strat strategy.Strategy, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		om:     order.New(cfg.SlippageBps, cfg.CommissionPct),
		pos:    position.New(),
		strat:  strat,
		logger: logger,
		equity: cfg.InitialCapital,
		peak:   cfg.InitialCapital,
		lastDay: -1,
	}
}

const dayMs = int64(24 * 60 * 60 * 1000)

func utcDay(t int64) int64 {
	return t / dayMs
}

// Run executes the full per-bar state machine described in §4.4 against the
// given candle series and optional higher-timeframe series, and returns the
// accumulated trade ledger and equity curve.
func (e *Engine) Run(candles []candle.Candle, htf map[candle.Interval][]candle.Candle) (Result, error) {
	if len(candles) == 0 {
		return Result{}, fmt.Errorf("engine: Run called with no candles")
	}

	e.strat.Init(candles, htf)

	for i, c := range candles {
		recorded := e.runBar(candles, i, htf)
		if !recorded && e.pos.IsFlat() {
			e.appendEquity(c.T, i)
		}
	}

	// End of data: force-close any open position at the last bar's close.
	last := candles[len(candles)-1]
	if !e.pos.IsFlat() {
		sz := e.pos.Size()
		side := order.Sell
		if e.pos.Direction() == position.Short {
			side = order.Buy
		}
		fill := e.closingFill(side, last.C, sz, last.T)
		trade, err := e.pos.ClosePosition(fill, len(candles)-1, position.ExitEOD, "End of data")
		if err != nil {
			return Result{}, fmt.Errorf("engine: end-of-data force close: %w", err)
		}
		e.equity += trade.PnL
		e.onTradeClosed(trade)
		e.appendEquity(last.T, len(candles)-1)
		e.logger.Info().Str("event", "force_close_eod").Float64("pnl", trade.PnL).Msg("position force-closed at end of data")
	}

	trades := e.pos.GetCompletedTrades()
	totalPnl := 0.0
	for _, t := range trades {
		totalPnl += t.PnL
	}
	maxDD := 0.0
	for _, ep := range e.equityPts {
		if ep.DrawdownPct > maxDD {
			maxDD = ep.DrawdownPct
		}
	}

	return Result{
		Trades:         trades,
		Equity:         e.equityPts,
		TotalPnL:       totalPnl,
		MaxDrawdownPct: maxDD,
		FinalEquity:    e.equity,
		BarsProcessed:  len(candles),
	}, nil
}

// runBar executes Steps A-F for one bar and reports whether it already
// appended an equity point (so Run's flat/no-fill fallback doesn't double
// up, per Step F).
func (e *Engine) runBar(candles []candle.Candle, i int, htf map[candle.Interval][]candle.Candle) bool {
	c := candles[i]

	// Step A — daily reset.
	day := utcDay(c.T)
	if day != e.lastDay {
		e.dailyPnl = 0
		e.tradesToday = 0
		e.consecutiveLosses = 0
		e.lastDay = day
	}

	// Step B — match orders.
	recordedEquity := e.matchOrders(c, i)

	// Step C — mark-to-market.
	if !e.pos.IsFlat() {
		e.pos.UpdateMtm(c.C)
	}

	// Step D — strategy-driven exit (deferred to next bar's open).
	if !e.pos.IsFlat() {
		ctx := e.contextFor(candles, i, htf)
		if decision := e.strat.ShouldExit(ctx); decision != nil && decision.Exit {
			e.om.ClearOrders()
			side := order.Sell
			if e.pos.Direction() == position.Short {
				side = order.Buy
			}
			e.om.AddOrder(order.Order{
				Side:         side,
				Type:         order.Market,
				Size:         e.pos.Size(),
				ReduceOnly:   true,
				Tag:          order.TagSignal,
				EntryComment: decision.Comment,
			})
		}
	}

	// Step E — entry.
	if e.pos.IsFlat() {
		e.barsSinceExit++
		if e.canTrade() {
			ctx := e.contextFor(candles, i, htf)
			if sig := e.strat.OnCandle(ctx); sig != nil {
				e.enterFromSignal(*sig, ctx.Current().C)
			}
		}
	}

	return recordedEquity
}

func (e *Engine) canTrade() bool {
	return e.barsSinceExit > e.cfg.CooldownBars &&
		e.consecutiveLosses < e.cfg.MaxConsecutiveLosses &&
		e.dailyPnl > -e.cfg.MaxDailyLossR*e.cfg.InitialCapital &&
		e.tradesToday < e.cfg.MaxTradesPerDay &&
		e.tradesToday < e.cfg.MaxGlobalTradesDay
}

func (e *Engine) contextFor(candles []candle.Candle, i int, htf map[candle.Interval][]candle.Candle) strategy.Context {
	ctx := strategy.Context{
		Candles:           candles,
		Index:             i,
		HTF:               htf,
		DailyPnl:          e.dailyPnl,
		TradesToday:       e.tradesToday,
		BarsSinceExit:     e.barsSinceExit,
		ConsecutiveLosses: e.consecutiveLosses,
	}
	if !e.pos.IsFlat() {
		ctx.HasPosition = true
		ctx.EntryPrice = e.pos.EntryPrice()
		ctx.EntryBar = e.pos.EntryBar()
		if e.pos.Direction() == position.Long {
			ctx.Dir = strategy.Long
		} else {
			ctx.Dir = strategy.Short
		}
	}
	return ctx
}

// matchOrders runs order.Manager.CheckOrders against the bar and applies
// the resulting fills per Step B, returning whether it appended an equity
// point as a side effect of a position close.
func (e *Engine) matchOrders(c candle.Candle, barIdx int) bool {
	res := e.om.CheckOrders(order.CandleView{T: c.T, Open: c.O, High: c.H, Low: c.L})
	recordedEquity := false

	for _, f := range res.Fills {
		switch {
		case f.Tag == order.TagEntry:
			e.openFromEntryFill(f, barIdx)

		case f.Tag == order.TagSignal:
			trade, err := e.pos.ClosePosition(toPositionFill(f), barIdx, position.ExitSignal, f.EntryComment)
			if err != nil {
				e.logger.Error().Err(err).Msg("signal close failed")
				continue
			}
			e.equity += trade.PnL
			e.onTradeClosed(trade)
			e.appendEquity(c.T, barIdx)
			recordedEquity = true
			e.om.ClearOrders()

		case f.Tag == order.TagSL || f.Tag == order.TagTrail:
			trade, err := e.pos.ClosePosition(toPositionFill(f), barIdx, position.ExitType(f.Tag), f.EntryComment)
			if err != nil {
				e.logger.Error().Err(err).Msg("sl/trail close failed")
				continue
			}
			e.equity += trade.PnL
			e.onTradeClosed(trade)
			e.appendEquity(c.T, barIdx)
			recordedEquity = true
			e.om.ClearOrders()

		case f.Tag.IsTakeProfit():
			wasFlatAfter := e.closeTakeProfit(f, barIdx, &recordedEquity, c.T)
			if wasFlatAfter {
				e.om.ClearOrders()
			}
		}
	}

	return recordedEquity
}

func (e *Engine) closeTakeProfit(f order.Fill, barIdx int, recordedEquity *bool, t int64) bool {
	trade, err := e.pos.PartialClose(toPositionFill(f), barIdx, position.ExitType(f.Tag), f.EntryComment)
	if err != nil {
		e.logger.Error().Err(err).Msg("take-profit close failed")
		return false
	}
	e.equity += trade.PnL
	if e.pos.IsFlat() {
		e.onTradeClosed(trade)
		e.appendEquity(t, barIdx)
		*recordedEquity = true
		return true
	}
	return false
}

func (e *Engine) openFromEntryFill(f order.Fill, barIdx int) {
	slPx := f.Price
	if sl, ok := e.om.FindByTag(order.TagSL); ok {
		slPx = sl.TriggerPx
	}
	stopDistance := abs(f.Price - slPx)

	dir := position.Long
	if f.Side == order.Sell {
		dir = position.Short
	}

	if err := e.pos.OpenPosition(dir, toPositionFill(f), stopDistance, barIdx, f.EntryComment); err != nil {
		e.logger.Error().Err(err).Msg("open position failed")
		return
	}
	e.logger.Info().Str("event", "open").Str("dir", string(dir)).Float64("price", f.Price).Msg("position opened")
}

func (e *Engine) onTradeClosed(trade position.CompletedTrade) {
	e.dailyPnl += trade.PnL
	e.barsSinceExit = 0
	if trade.PnL < 0 {
		e.consecutiveLosses++
	} else {
		e.consecutiveLosses = 0
	}
	e.logger.Info().Str("event", "close").Str("exitType", string(trade.ExitType)).Float64("pnl", trade.PnL).Msg("position closed")
}

// enterFromSignal sizes and enqueues the entry/SL/TP order triplet for a
// non-null Signal. currentClose estimates the fill price for a market entry
// (sig.EntryPrice == nil), since the order itself only fills on a later
// bar's open.
func (e *Engine) enterFromSignal(sig strategy.Signal, currentClose float64) {
	entryPrice := currentClose
	if sig.EntryPrice != nil {
		entryPrice = *sig.EntryPrice
	}
	stopDist := abs(entryPrice - sig.StopLoss)

	var size float64
	switch e.cfg.SizingMode {
	case SizingCash:
		if entryPrice > 0 {
			size = e.cfg.CashPerTrade / entryPrice
		}
	default: // risk
		if stopDist > 0 {
			size = e.cfg.RiskPerTradeUsd / stopDist
		}
	}

	if size <= 0 {
		return
	}

	side := order.Buy
	oppSide := order.Sell
	if sig.Direction == strategy.Short {
		side, oppSide = order.Sell, order.Buy
	}

	entryOrder := order.Order{
		Side:         side,
		Type:         order.Market,
		Size:         size,
		Tag:          order.TagEntry,
		EntryComment: sig.Comment,
	}
	if sig.EntryPrice != nil {
		entryOrder.Type = order.Stop
		entryOrder.TriggerPx = *sig.EntryPrice
	}
	e.om.AddOrder(entryOrder)

	e.om.AddOrder(order.Order{
		Side:       oppSide,
		Type:       order.Stop,
		TriggerPx:  sig.StopLoss,
		Size:       size,
		ReduceOnly: true,
		Tag:        order.TagSL,
	})

	for idx, tp := range sig.TakeProfit {
		e.om.AddOrder(order.Order{
			Side:       oppSide,
			Type:       order.Limit,
			TriggerPx:  tp.Price,
			Size:       size * tp.PctOfPosition,
			ReduceOnly: true,
			Tag:        order.Tag(fmt.Sprintf("tp%d", idx+1)),
		})
	}

	e.tradesToday++
}

// closingFill builds the synthetic fill used for the end-of-data force
// close, applying the same slippage and commission model as a real fill
// (§4.4 "End of data").
func (e *Engine) closingFill(side order.Side, price, size float64, t int64) position.Fill {
	adj := price * e.cfg.SlippageBps / 10000
	px := price
	if side == order.Buy {
		px += adj
	} else {
		px -= adj
	}
	fee := px * size * e.cfg.CommissionPct / 100
	return position.Fill{Price: px, Size: size, Fee: fee, Slippage: abs(px-price) * size, T: t}
}

func toPositionFill(f order.Fill) position.Fill {
	return position.Fill{Price: f.Price, Size: f.Size, Fee: f.Fee, Slippage: f.Slippage, T: f.T}
}

func (e *Engine) appendEquity(t int64, barIdx int) {
	if e.equity > e.peak {
		e.peak = e.equity
	}
	dd := 0.0
	if e.peak > 0 {
		dd = (e.peak - e.equity) / e.peak * 100
	}
	e.equityPts = append(e.equityPts, EquityPoint{T: t, BarIndex: barIdx, Equity: e.equity, Peak: e.peak, DrawdownPct: dd})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
