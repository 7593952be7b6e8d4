package optimize

import "fmt"

// Criteria are the acceptance-criteria thresholds (§4.8c). Pointer fields
// distinguish "not set at this tier" from "set to zero" so the three-tier
// merge in §6 (global ⊕ assetClass ⊕ strategyProfile) can tell which
// fields to carry forward versus override.
type Criteria struct {
	MinTrades *int     `json:"minTrades,omitempty"`
	MinPF     *float64 `json:"minPF,omitempty"`
	MaxDD     *float64 `json:"maxDD,omitempty"`
	MinWR     *float64 `json:"minWR,omitempty"`
	MinAvgR   *float64 `json:"minAvgR,omitempty"`
}

// MergeCriteria resolves the three-tier override chain, rightmost wins
// per field (§4.8c): global ⊕ assetClass ⊕ strategyProfile.
func MergeCriteria(layers ...Criteria) Criteria {
	var out Criteria
	for _, l := range layers {
		if l.MinTrades != nil {
			out.MinTrades = l.MinTrades
		}
		if l.MinPF != nil {
			out.MinPF = l.MinPF
		}
		if l.MaxDD != nil {
			out.MaxDD = l.MaxDD
		}
		if l.MinWR != nil {
			out.MinWR = l.MinWR
		}
		if l.MinAvgR != nil {
			out.MinAvgR = l.MinAvgR
		}
	}
	return out
}

// EvalInput is the reduced metrics set acceptance criteria are checked
// against.
type EvalInput struct {
	TotalPnL       float64
	NumTrades      int
	ProfitFactor   float64
	MaxDrawdownPct float64
	WinRate        float64
	AvgR           float64
}

// Check evaluates every acceptance criterion named in §4.8c. An unset
// tier field imposes no constraint. Returns whether all criteria hold and
// the names of any that failed, in the order listed in §4.8c.
func (c Criteria) Check(in EvalInput) (bool, []string) {
	var unmet []string

	if in.TotalPnL <= 0 {
		unmet = append(unmet, "totalPnl>0")
	}
	if c.MinTrades != nil && in.NumTrades < *c.MinTrades {
		unmet = append(unmet, fmt.Sprintf("numTrades>=%d", *c.MinTrades))
	}
	if c.MinPF != nil && in.ProfitFactor < *c.MinPF {
		unmet = append(unmet, fmt.Sprintf("profitFactor>=%.4g", *c.MinPF))
	}
	if c.MaxDD != nil && in.MaxDrawdownPct > *c.MaxDD {
		unmet = append(unmet, fmt.Sprintf("maxDrawdownPct<=%.4g", *c.MaxDD))
	}
	if c.MinWR != nil && in.WinRate < *c.MinWR {
		unmet = append(unmet, fmt.Sprintf("winRate>=%.4g", *c.MinWR))
	}
	if c.MinAvgR != nil && in.AvgR < *c.MinAvgR {
		unmet = append(unmet, fmt.Sprintf("avgR>=%.4g", *c.MinAvgR))
	}

	return len(unmet) == 0, unmet
}
