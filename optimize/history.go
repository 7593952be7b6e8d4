package optimize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
)

// ChangeRecord is the (param, from, to, scale) tuple an IterationRecord
// carries when the oracle's decision was applied (§3).
type ChangeRecord struct {
	Param string      `json:"param"`
	From  float64     `json:"from"`
	To    float64     `json:"to"`
	Scale ChangeScale `json:"scale"`
}

// IterationRecord is one entry of the ParameterHistory journal (§3).
type IterationRecord struct {
	Iter          int               `json:"iter"`
	RunID         string            `json:"runId,omitempty"` // owning ParameterHistory.RunID, stamped on append
	Date          string            `json:"date"` // UTC calendar date, YYYY-MM-DD
	Change        *ChangeRecord     `json:"change,omitempty"`
	MetricsBefore map[string]float64 `json:"metricsBefore,omitempty"`
	MetricsAfter  map[string]float64 `json:"metricsAfter,omitempty"`
	TradesBefore  int               `json:"tradesBefore"`
	TradesAfter   int               `json:"tradesAfter"`
	Verdict       Verdict           `json:"verdict"`
}

// NeverWorkedEntry is one (param, value, iter, reason) the loop has ruled
// out (§3).
type NeverWorkedEntry struct {
	Param  string  `json:"param"`
	Value  float64 `json:"value"`
	Iter   int     `json:"iter"`
	Reason string  `json:"reason"`
}

// Hypothesis is a pending idea surfaced by research phase, which expires
// if not acted on within 5 iterations (§4.8f).
type Hypothesis struct {
	Text      string `json:"text"`
	AddedIter int    `json:"addedIter"`
}

// ApproachVerdict classifies a named strategy variant (§3).
type ApproachVerdict string

const (
	ApproachActive    ApproachVerdict = "active"
	ApproachExhausted ApproachVerdict = "exhausted"
	ApproachPromising ApproachVerdict = "promising"
)

// Approach is a user-named strategy variant tracked across the run (§3).
type Approach struct {
	ID      int             `json:"id"`
	Name    string          `json:"name"`
	Verdict ApproachVerdict `json:"verdict"`
}

// ParameterHistory is the persistent journal across iterations (§3),
// written atomically after every iteration (§6).
type ParameterHistory struct {
	// RunID identifies the optimization run this journal belongs to, so
	// concurrent asset runs never collide when their checkpoint/history
	// metadata is inspected out of directory context (§4.8b).
	RunID             string              `json:"runId"`
	Iterations        []IterationRecord   `json:"iterations"`
	ExploredRanges    map[string][]float64 `json:"exploredRanges"`
	NeverWorked       []NeverWorkedEntry  `json:"neverWorked"`
	PendingHypotheses []Hypothesis        `json:"pendingHypotheses"`
	Approaches        []Approach          `json:"approaches"`
	CurrentPhase      Phase               `json:"currentPhase"`
	PhaseStartIter    int                 `json:"phaseStartIter"`
}

// NewParameterHistory returns an empty journal stamped with a fresh run id.
func NewParameterHistory() *ParameterHistory {
	return &ParameterHistory{RunID: uuid.NewString(), ExploredRanges: map[string][]float64{}}
}

// LoadParameterHistory reads a journal previously written by Save. A
// missing file is not an error: it returns a fresh, empty journal, since
// the very first iteration of a run has nothing to load.
func LoadParameterHistory(path string) (*ParameterHistory, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewParameterHistory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("optimize: load parameter history: %w", err)
	}
	var h ParameterHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("optimize: parse parameter history: %w", err)
	}
	if h.ExploredRanges == nil {
		h.ExploredRanges = map[string][]float64{}
	}
	if h.RunID == "" {
		h.RunID = uuid.NewString()
	}
	return &h, nil
}

// Save atomically persists the journal to path (§6 "written atomically
// per iteration").
func (h *ParameterHistory) Save(path string) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("optimize: marshal parameter history: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("optimize: save parameter history: %w", err)
	}
	return nil
}

// AppendIteration appends a new pending record, to be back-filled by the
// next call to Backfill once the following iteration's metrics are known.
func (h *ParameterHistory) AppendIteration(rec IterationRecord) {
	rec.RunID = h.RunID
	rec.Verdict = VerdictPending
	h.Iterations = append(h.Iterations, rec)
}

// Backfill fills in the most recent (still-pending) iteration with its
// after-metrics and verdict, per §4.8f: improved if PnL delta > +5%,
// degraded if < -5%, else neutral. A degraded iteration with magnitude
// >15% is also recorded as never-worked; a neutral iteration whose trade
// count did not change is recorded as a no-trade-impact never-worked
// entry.
func (h *ParameterHistory) Backfill(afterMetrics map[string]float64, pnlBefore, pnlAfter float64, tradesAfter int) Verdict {
	if len(h.Iterations) == 0 {
		return VerdictPending
	}
	idx := len(h.Iterations) - 1
	rec := &h.Iterations[idx]
	rec.MetricsAfter = afterMetrics
	rec.TradesAfter = tradesAfter

	delta := pnlDeltaPct(pnlBefore, pnlAfter)
	verdict := VerdictNeutral
	switch {
	case delta > 5:
		verdict = VerdictImproved
	case delta < -5:
		verdict = VerdictDegraded
	}
	rec.Verdict = verdict

	if verdict == VerdictDegraded && delta < -15 && rec.Change != nil {
		h.NeverWorked = append(h.NeverWorked, NeverWorkedEntry{
			Param:  rec.Change.Param,
			Value:  rec.Change.To,
			Iter:   rec.Iter,
			Reason: "pnl_degraded",
		})
	}
	if verdict == VerdictNeutral && rec.TradesBefore == tradesAfter && rec.Change != nil {
		h.NeverWorked = append(h.NeverWorked, NeverWorkedEntry{
			Param:  rec.Change.Param,
			Value:  rec.Change.To,
			Iter:   rec.Iter,
			Reason: "no_trade_impact",
		})
	}

	return verdict
}

func pnlDeltaPct(before, after float64) float64 {
	if before == 0 {
		if after == 0 {
			return 0
		}
		if after > 0 {
			return 100
		}
		return -100
	}
	return (after - before) / absFloat(before) * 100
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// RecordExplored adds value to the set of tested values for param,
// deduplicated.
func (h *ParameterHistory) RecordExplored(param string, value float64) {
	for _, v := range h.ExploredRanges[param] {
		if v == value {
			return
		}
	}
	h.ExploredRanges[param] = append(h.ExploredRanges[param], value)
}

// ExpirePendingHypotheses drops hypotheses older than 5 iterations (§4.8f).
func (h *ParameterHistory) ExpirePendingHypotheses(currentIter int) {
	kept := h.PendingHypotheses[:0]
	for _, hyp := range h.PendingHypotheses {
		if currentIter-hyp.AddedIter <= 5 {
			kept = append(kept, hyp)
		}
	}
	h.PendingHypotheses = kept
}

// AddHypothesis enqueues a new pending hypothesis surfaced by research
// phase.
func (h *ParameterHistory) AddHypothesis(text string, iter int) {
	h.PendingHypotheses = append(h.PendingHypotheses, Hypothesis{Text: text, AddedIter: iter})
}

// ExhaustApproach marks an approach exhausted and opens a new one with
// id = prevId + 1 (§3).
func (h *ParameterHistory) ExhaustApproach(id int, newName string) Approach {
	for i := range h.Approaches {
		if h.Approaches[i].ID == id {
			h.Approaches[i].Verdict = ApproachExhausted
		}
	}
	next := Approach{ID: h.nextApproachID(), Name: newName, Verdict: ApproachActive}
	h.Approaches = append(h.Approaches, next)
	return next
}

func (h *ParameterHistory) nextApproachID() int {
	max := 0
	for _, a := range h.Approaches {
		if a.ID > max {
			max = a.ID
		}
	}
	return max + 1
}

// sortedParams returns the ExploredRanges keys in sorted order, for a
// deterministic iteration order (map iteration order is random).
func (h *ParameterHistory) sortedParams() []string {
	out := make([]string, 0, len(h.ExploredRanges))
	for k := range h.ExploredRanges {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
