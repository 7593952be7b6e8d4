// Package oracle defines the narrow, pluggable contract the optimization
// loop (C7) calls once per iteration to propose a change (§4.8d). The core
// does not specify the oracle's implementation: production wiring is a
// remote LLM, tests wire a deterministic stub. Types here are decoupled
// from package optimize's internal bookkeeping (ParameterHistory etc.) the
// same way package order/position decouple their Fill shapes from the
// engine, so optimize -> oracle stays a one-way dependency.
package oracle

import "context"

// Kind tags which of the four shapes a Decision carries.
type Kind string

const (
	KindParamChange   Kind = "paramChange"
	KindSourceEdit    Kind = "sourceEdit"
	KindNoChange      Kind = "noChange"
	KindResearchBrief Kind = "researchBrief"
)

// Decision is the oracle's verdict for one iteration.
type Decision struct {
	Kind Kind

	// KindParamChange.
	Overrides map[string]float64

	// KindSourceEdit.
	NewText string

	// KindResearchBrief.
	SuggestedApproaches []string
}

// NeverWorked mirrors one entry of optimize.ParameterHistory.NeverWorked,
// carried here only as read context for the oracle.
type NeverWorked struct {
	Param  string
	Value  float64
	Iter   int
	Reason string
}

// Context is the full diagnostic snapshot handed to the oracle each
// iteration (§4.8d): current metrics, unmet acceptance criteria, parameter
// history, explored ranges, pending hypotheses, and the active phase.
type Context struct {
	Phase string

	Metrics       map[string]float64
	UnmetCriteria []string

	CurrentParams map[string]float64
	ParamBounds   map[string][2]float64 // name -> [min, max]

	ExploredRanges    map[string][]float64
	NeverWorked       []NeverWorked
	PendingHypotheses []string

	StrategySource string
	Iter           int
}

// Oracle is the contract an external agent (LLM in production, stub in
// tests) implements to participate in the optimization loop.
type Oracle interface {
	Propose(ctx context.Context, diag Context) (Decision, error)
}

// NoopOracle always declines, matching "a deterministic stub in tests"
// (spec.md §9) and serving as the production placeholder when no LLM is
// wired (§1: "the external LLM invocation ... is modeled as an oracle").
type NoopOracle struct{}

func (NoopOracle) Propose(context.Context, Context) (Decision, error) {
	return Decision{Kind: KindNoChange}, nil
}

// ScriptedOracle plays back a fixed queue of decisions, one per call, for
// deterministic end-to-end phase-machine tests (scenario 6, §8). Once the
// queue is exhausted it returns KindNoChange.
type ScriptedOracle struct {
	Decisions []Decision
	calls     int
}

func (s *ScriptedOracle) Propose(context.Context, Context) (Decision, error) {
	if s.calls >= len(s.Decisions) {
		return Decision{Kind: KindNoChange}, nil
	}
	d := s.Decisions[s.calls]
	s.calls++
	return d, nil
}

// Calls reports how many scripted decisions Propose has played back; calls
// made after the script is exhausted are not counted.
func (s *ScriptedOracle) Calls() int {
	return s.calls
}
