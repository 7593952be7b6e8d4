package optimize

import "math"

// Weights are the multi-objective scoring weights (§4.8a), defaulting to
// pf:25, avgR:20, wr:10, dd:15, complexity:10, sample:20 (sums to 100).
type Weights struct {
	PF         float64
	AvgR       float64
	WR         float64
	DD         float64
	Complexity float64
	Sample     float64
}

// DefaultWeights returns the documented default scoring weights.
func DefaultWeights() Weights {
	return Weights{PF: 25, AvgR: 20, WR: 10, DD: 15, Complexity: 10, Sample: 20}
}

// ScoreInput is the reduced set of metrics and run shape the score formula
// consumes.
type ScoreInput struct {
	PF                float64
	AvgR              float64
	WR                float64
	DD                float64
	OptimizableParams int
	Trades            int
}

// Score computes the §4.8a multi-objective score, 0-100, rounded to 2
// decimals. NaN component inputs (an empty trade ledger's PF/WR/AvgR) are
// treated as their worst-case component score (0), since a run with no
// trades should never out-score one with any real track record.
func Score(in ScoreInput, w Weights) float64 {
	pfScore := clamp01OrZero(in.PF / 2.0)
	avgRScore := clamp01OrZero(in.AvgR / 0.5)
	wrScore := clamp01OrZero(in.WR / 40)
	ddScore := max0(1 - in.DD/15)
	complexityScore := clamp01(1 - float64(in.OptimizableParams-5)/15)
	sampleScore := clamp01OrZero(float64(in.Trades) / 150)

	score := pfScore*w.PF + avgRScore*w.AvgR + wrScore*w.WR + ddScore*w.DD + complexityScore*w.Complexity + sampleScore*w.Sample
	return round2(score)
}

func clamp01OrZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScoreVerdict is the compare-with-previous verdict (§4.8a), distinct from
// IterationRecord's PnL-delta verdict (§4.8f): this one compares the
// composite score and drives the phase machine's VERDICT event.
type ScoreVerdict string

const (
	ScoreAccept  ScoreVerdict = "accept"
	ScoreReject  ScoreVerdict = "reject"
	ScoreNeutral ScoreVerdict = "neutral"
)

// CompareScore implements §4.8a's accept/reject/neutral rule: accept if
// new > old*1.02, reject if new < old*0.85, else neutral; when old <= 0,
// accept if new > 0, else neutral.
func CompareScore(newScore, oldScore float64) ScoreVerdict {
	if oldScore <= 0 {
		if newScore > 0 {
			return ScoreAccept
		}
		return ScoreNeutral
	}
	switch {
	case newScore > oldScore*1.02:
		return ScoreAccept
	case newScore < oldScore*0.85:
		return ScoreReject
	default:
		return ScoreNeutral
	}
}

// ToMachineVerdict maps a ScoreVerdict onto the phase machine's Verdict
// vocabulary for the VERDICT(kind) event.
func ToMachineVerdict(sv ScoreVerdict) Verdict {
	switch sv {
	case ScoreAccept:
		return VerdictImproved
	case ScoreReject:
		return VerdictDegraded
	default:
		return VerdictNeutral
	}
}
