// Package strategy defines the typed contract the execution engine consumes
// and the per-bar context handed to strategy implementations.
package strategy

import "github.com/axton-labs/backtrader/candle"

// Direction mirrors position.Direction without importing it, keeping the
// strategy contract free of a dependency on the engine's internals.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// TakeProfit is one slice of a signal's take-profit ladder.
type TakeProfit struct {
	Price         float64
	PctOfPosition float64
}

// Signal is a strategy's entry instruction. EntryPrice nil means market
// entry; StopLoss is always required.
type Signal struct {
	Direction  Direction
	EntryPrice *float64
	StopLoss   float64
	TakeProfit []TakeProfit
	Comment    string
}

// ExitDecision is shouldExit's verdict.
type ExitDecision struct {
	Exit    bool
	Comment string
}

// Parameter is one declared, optionally-tunable strategy parameter.
type Parameter struct {
	Value       float64
	Min         float64
	Max         float64
	Step        float64
	Optimizable bool
	Description string
}

// Context is presented to a strategy once per bar. It exposes only the bar
// prefix up to and including the current bar, never future data.
type Context struct {
	Candles []candle.Candle
	Index   int

	// HasPosition, Dir, EntryPrice and EntryBar describe the open position;
	// HasPosition is false exactly when the engine is about to call
	// OnCandle (flat) rather than ShouldExit (in position).
	HasPosition bool
	Dir         Direction
	EntryPrice  float64
	EntryBar    int

	HTF map[candle.Interval][]candle.Candle

	DailyPnl          float64
	TradesToday       int
	BarsSinceExit     int
	ConsecutiveLosses int
}

// Current returns the bar at the context's current index.
func (c Context) Current() candle.Candle {
	return c.Candles[c.Index]
}

// Strategy is the polymorphic contract the engine drives. Implementations
// need not provide Init or ShouldExit; embed NoInit / NoExit to default them
// to no-ops, matching the spec's "optional hook" language.
type Strategy interface {
	Name() string
	Params() map[string]Parameter
	RequiredTimeframes() []candle.Interval

	// Init is called once before the run for indicator pre-computation. It
	// receives the full candle series and any requested higher-timeframe
	// series keyed by interval.
	Init(candles []candle.Candle, htf map[candle.Interval][]candle.Candle)

	// OnCandle is invoked each bar while flat. Must not be called while a
	// position is open.
	OnCandle(ctx Context) *Signal

	// ShouldExit is invoked each bar while in a position. Must not be
	// called while flat.
	ShouldExit(ctx Context) *ExitDecision
}

// NoInit provides a no-op Init for strategies with nothing to precompute.
type NoInit struct{}

func (NoInit) Init([]candle.Candle, map[candle.Interval][]candle.Candle) {}

// NoExit provides a no-op ShouldExit for strategies that rely solely on
// their resting SL/TP orders.
type NoExit struct{}

func (NoExit) ShouldExit(Context) *ExitDecision { return nil }

// NoHTF provides an empty RequiredTimeframes for strategies needing none.
type NoHTF struct{}

func (NoHTF) RequiredTimeframes() []candle.Interval { return nil }
