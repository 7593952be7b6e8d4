package strategy

import "fmt"

// Factory instantiates a named strategy, applying overrides on top of its
// declared defaults. It mirrors §6's "a named factory so the orchestrator
// can instantiate it with a parameter-override map" contract, kept in this
// package (rather than optimize, which only depends on the narrower
// Strategy interface) so cmd/backtest's config-driven wiring and
// optimize.Orchestrator.Config.Factory share one source of truth.
type Factory func(overrides map[string]float64) (Strategy, error)

// registry is the closed set of strategyFactory names a config document's
// assets.<ASSET>.strategies.<name>.strategyFactory field may reference.
// Concrete strategies are out of scope per spec.md §1; these two reference
// implementations (AlwaysLong, ThresholdStrategy) are the only ones wired
// end to end, matching the teacher's own small built-in set.
var registry = map[string]Factory{
	"always-long": func(overrides map[string]float64) (Strategy, error) {
		s := &AlwaysLong{StopDistance: 50, TakeProfitPx: 0}
		if v, ok := overrides["stopDistance"]; ok {
			s.StopDistance = v
		}
		return s, nil
	},
	"threshold": func(overrides map[string]float64) (Strategy, error) {
		s := &ThresholdStrategy{
			Threshold:     10100,
			ExitThreshold: 10050,
			StopDistance:  50,
			RiskReward:    2,
		}
		if v, ok := overrides["threshold"]; ok {
			s.Threshold = v
		}
		if v, ok := overrides["exitThreshold"]; ok {
			s.ExitThreshold = v
		}
		if v, ok := overrides["stopDistance"]; ok {
			s.StopDistance = v
		}
		if v, ok := overrides["riskReward"]; ok {
			s.RiskReward = v
		}
		return s, nil
	},
}

// Lookup resolves a strategyFactory name from the registry. Unknown names
// fail fast rather than silently falling back, matching §7's InvalidStrategy
// taxonomy entry ("strategy interface contract violated ⇒ abort run
// immediately").
func Lookup(name string) (Factory, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategyFactory %q", name)
	}
	return f, nil
}

// Names lists the registry's known strategyFactory identifiers in Go map
// iteration order, which is not stable; the result is not sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
