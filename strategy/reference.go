package strategy

import "github.com/axton-labs/backtrader/candle"

// AlwaysLong is a minimal reference strategy used by engine tests (the
// "always enter long on bar 0, never exit via shouldExit" scenario): it
// opens a single long on the first bar it sees while flat and otherwise
// relies entirely on its SL/TP orders to exit.
type AlwaysLong struct {
	NoInit
	NoExit
	NoHTF

	StopDistance float64
	TakeProfitPx float64
	entered      bool
}

func (s *AlwaysLong) Name() string { return "always-long" }

func (s *AlwaysLong) Params() map[string]Parameter {
	return map[string]Parameter{
		"stopDistance": {Value: s.StopDistance, Min: 0, Max: 1e9, Step: 0.01, Optimizable: true, Description: "absolute distance to initial stop"},
	}
}

func (s *AlwaysLong) OnCandle(ctx Context) *Signal {
	if s.entered {
		return nil
	}
	s.entered = true
	px := ctx.Current().C
	sig := &Signal{
		Direction: Long,
		StopLoss:  px - s.StopDistance,
		Comment:   "always-long entry",
	}
	if s.TakeProfitPx > 0 {
		sig.TakeProfit = []TakeProfit{{Price: s.TakeProfitPx, PctOfPosition: 1.0}}
	}
	return sig
}

// ThresholdStrategy is a configurable reference strategy exercising
// parameter declarations end-to-end (min/max/step/optimizable metadata and
// the oracle guardrail path): it goes long when price crosses above
// Threshold and exits when it crosses back below ExitThreshold.
type ThresholdStrategy struct {
	NoHTF

	Threshold     float64
	ExitThreshold float64
	StopDistance  float64
	RiskReward    float64
}

func (s *ThresholdStrategy) Name() string { return "threshold" }

func (s *ThresholdStrategy) Params() map[string]Parameter {
	return map[string]Parameter{
		"threshold":     {Value: s.Threshold, Min: 0, Max: 1e9, Step: 0.5, Optimizable: true, Description: "entry breakout level"},
		"exitThreshold": {Value: s.ExitThreshold, Min: 0, Max: 1e9, Step: 0.5, Optimizable: true, Description: "signal-exit level"},
		"stopDistance":  {Value: s.StopDistance, Min: 0.01, Max: 1e9, Step: 0.01, Optimizable: true, Description: "absolute distance to initial stop"},
		"riskReward":    {Value: s.RiskReward, Min: 0.5, Max: 10, Step: 0.1, Optimizable: true, Description: "take-profit distance as a multiple of stopDistance"},
	}
}

func (s *ThresholdStrategy) Init([]candle.Candle, map[candle.Interval][]candle.Candle) {}

func (s *ThresholdStrategy) OnCandle(ctx Context) *Signal {
	c := ctx.Current()
	if c.C <= s.Threshold {
		return nil
	}
	tpDist := s.StopDistance * s.RiskReward
	return &Signal{
		Direction:  Long,
		StopLoss:   c.C - s.StopDistance,
		TakeProfit: []TakeProfit{{Price: c.C + tpDist, PctOfPosition: 1.0}},
		Comment:    "threshold breakout",
	}
}

func (s *ThresholdStrategy) ShouldExit(ctx Context) *ExitDecision {
	if ctx.Current().C < s.ExitThreshold {
		return &ExitDecision{Exit: true, Comment: "fell below exit threshold"}
	}
	return nil
}
