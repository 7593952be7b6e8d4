package optimize

import "fmt"

// ParamBounds is a parameter's declared [min, max] range (§4.8e(iii)).
type ParamBounds struct {
	Min float64
	Max float64
}

// Guardrails are the static validation rules a proposed change must
// satisfy before being accepted (§4.8e, config key guardrails.*, §6).
type Guardrails struct {
	ProtectedFields     []string
	AtrMultiplierFields []string
	MinAtrMult          float64
	MaxAtrMult          float64
}

// GuardrailViolation is the error taxonomy entry emitted when the oracle
// proposes a forbidden change (§7): the orchestrator rejects the change
// and records it as NO_CHANGE rather than aborting the run.
type GuardrailViolation struct {
	Field  string
	Reason string
}

func (e *GuardrailViolation) Error() string {
	return fmt.Sprintf("optimize: guardrail violation on %q: %s", e.Field, e.Reason)
}

func (g Guardrails) isProtected(name string) bool {
	for _, f := range g.ProtectedFields {
		if f == name {
			return true
		}
	}
	return false
}

func (g Guardrails) isAtrMultiplier(name string) bool {
	for _, f := range g.AtrMultiplierFields {
		if f == name {
			return true
		}
	}
	return false
}

// Validate checks a proposed parameter-override map against the protected-
// field list, the ATR-multiplier range, and each parameter's own declared
// bounds (§4.8e (i)-(iii)). It returns the first violation found, wrapped
// as *GuardrailViolation.
func (g Guardrails) Validate(overrides map[string]float64, bounds map[string]ParamBounds) error {
	for name, val := range overrides {
		if g.isProtected(name) {
			return &GuardrailViolation{Field: name, Reason: "protected field"}
		}
		if g.isAtrMultiplier(name) && (val < g.MinAtrMult || val > g.MaxAtrMult) {
			return &GuardrailViolation{Field: name, Reason: fmt.Sprintf("%.4g outside ATR-multiplier range [%.4g, %.4g]", val, g.MinAtrMult, g.MaxAtrMult)}
		}
		if b, ok := bounds[name]; ok && (val < b.Min || val > b.Max) {
			return &GuardrailViolation{Field: name, Reason: fmt.Sprintf("%.4g outside declared range [%.4g, %.4g]", val, b.Min, b.Max)}
		}
	}
	return nil
}

// CompileError is the error taxonomy entry for a failed restructure
// typecheck (§7): the orchestrator increments fixAttempts and does not
// apply the edit. It rolls back to the checkpoint only once fixAttempts
// reaches MaxFixAttempts, and a compile error never changes the phase.
type CompileError struct {
	Detail string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("optimize: strategy source failed to compile: %s", e.Detail)
}

// ValidateStructural runs the caller-supplied typecheck/compile step
// against a proposed source rewrite (§4.8e (iv)). check is injected so the
// core stays decoupled from any concrete toolchain invocation; a nil check
// always passes, matching the "no rebuild step configured" default.
func ValidateStructural(check func(source string) error, source string) error {
	if check == nil {
		return nil
	}
	if err := check(source); err != nil {
		return &CompileError{Detail: err.Error()}
	}
	return nil
}
