// Package config loads the single JSON configuration document (§6) that
// drives a backtrader run: global/class/profile acceptance-criteria
// overrides, per-asset strategy wiring, guardrails, phase budgets, scoring
// weights, and oracle routing hints. Document shape and
// GetDefault-style fallback grounded on SynapseStrike/store/strategy.go's
// StrategyConfig/GetDefaultStrategyConfig.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/axton-labs/backtrader/candle"
	"github.com/axton-labs/backtrader/engine"
	"github.com/axton-labs/backtrader/optimize"
	"github.com/joho/godotenv"
)

// DateRange is either an explicit {start, end} pair or a preset string
// (`last<N>` or `custom:YYYY-MM-DD:YYYY-MM-DD`), per §6.
type DateRange struct {
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Preset string `json:"preset,omitempty"`
}

// Resolve turns a DateRange into concrete [startMs, endMs] bounds, UTC.
// now is injected so callers can make resolution deterministic in tests.
func (r DateRange) Resolve(now time.Time) (startMs, endMs int64, err error) {
	if r.Preset != "" {
		return resolvePreset(r.Preset, now)
	}
	if r.Start == "" || r.End == "" {
		return 0, 0, fmt.Errorf("config: dateRange requires both start and end, or a preset")
	}
	start, err := time.Parse("2006-01-02", r.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("config: invalid dateRange.start %q: %w", r.Start, err)
	}
	end, err := time.Parse("2006-01-02", r.End)
	if err != nil {
		return 0, 0, fmt.Errorf("config: invalid dateRange.end %q: %w", r.End, err)
	}
	return start.UTC().UnixMilli(), end.UTC().UnixMilli(), nil
}

func resolvePreset(preset string, now time.Time) (int64, int64, error) {
	if strings.HasPrefix(preset, "last") {
		n, err := strconv.Atoi(strings.TrimPrefix(preset, "last"))
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("config: invalid dateRange preset %q", preset)
		}
		end := now.UTC()
		start := end.AddDate(0, 0, -n)
		return start.UnixMilli(), end.UnixMilli(), nil
	}
	if strings.HasPrefix(preset, "custom:") {
		parts := strings.Split(strings.TrimPrefix(preset, "custom:"), ":")
		if len(parts) != 2 {
			return 0, 0, fmt.Errorf("config: invalid dateRange preset %q, want custom:YYYY-MM-DD:YYYY-MM-DD", preset)
		}
		return DateRange{Start: parts[0], End: parts[1]}.Resolve(now)
	}
	return 0, 0, fmt.Errorf("config: unrecognized dateRange preset %q", preset)
}

// GuardrailsConfig mirrors the on-disk guardrails.* keys (§6, §4.8e).
type GuardrailsConfig struct {
	MaxRiskTradeUsd    float64  `json:"maxRiskTradeUsd,omitempty"`
	ProtectedFields    []string `json:"protectedFields,omitempty"`
	MaxAtrMult         float64  `json:"maxAtrMult,omitempty"`
	MinAtrMult         float64  `json:"minAtrMult,omitempty"`
	GlobalMaxTradesDay int      `json:"globalMaxTradesDay,omitempty"`
}

// ToGuardrails converts the on-disk keys into optimize.Guardrails. Atr
// multiplier fields aren't separately named in the on-disk document, so the
// caller supplies them as atrMultiplierFields (cmd/backtest passes every
// param whose name ends in "AtrMult").
func (g GuardrailsConfig) ToGuardrails(atrMultiplierFields []string) optimize.Guardrails {
	return optimize.Guardrails{
		ProtectedFields:     g.ProtectedFields,
		AtrMultiplierFields: atrMultiplierFields,
		MinAtrMult:          g.MinAtrMult,
		MaxAtrMult:          g.MaxAtrMult,
	}
}

// PhaseBudget mirrors phases.{refine,research,restructure}.maxIter plus
// phases.maxCycles (§6).
type PhaseBudget struct {
	Refine      PhaseIterBudget `json:"refine,omitempty"`
	Research    PhaseIterBudget `json:"research,omitempty"`
	Restructure PhaseIterBudget `json:"restructure,omitempty"`
	MaxCycles   int             `json:"maxCycles,omitempty"`
}

type PhaseIterBudget struct {
	MaxIter int `json:"maxIter,omitempty"`
}

// ToMaxIterPerPhase builds the map Orchestrator.Config.MaxIterPerPhase
// expects. Zero entries fall back to defaultIter.
func (p PhaseBudget) ToMaxIterPerPhase(defaultIter int) map[optimize.Phase]int {
	pick := func(b PhaseIterBudget) int {
		if b.MaxIter > 0 {
			return b.MaxIter
		}
		return defaultIter
	}
	return map[optimize.Phase]int{
		optimize.PhaseRefine:      pick(p.Refine),
		optimize.PhaseResearch:    pick(p.Research),
		optimize.PhaseRestructure: pick(p.Restructure),
	}
}

// ScoringWeights mirrors scoring.weights.* (§6, §4.8a).
type ScoringWeights struct {
	PF               float64 `json:"pf,omitempty"`
	AvgR             float64 `json:"avgR,omitempty"`
	WR               float64 `json:"wr,omitempty"`
	DD               float64 `json:"dd,omitempty"`
	Complexity       float64 `json:"complexity,omitempty"`
	SampleConfidence float64 `json:"sampleConfidence,omitempty"`
}

// ToWeights converts the on-disk weights, falling back field-by-field to
// optimize.DefaultWeights() for anything left at zero.
func (w ScoringWeights) ToWeights() optimize.Weights {
	d := optimize.DefaultWeights()
	out := d
	if w.PF != 0 {
		out.PF = w.PF
	}
	if w.AvgR != 0 {
		out.AvgR = w.AvgR
	}
	if w.WR != 0 {
		out.WR = w.WR
	}
	if w.DD != 0 {
		out.DD = w.DD
	}
	if w.Complexity != 0 {
		out.Complexity = w.Complexity
	}
	if w.SampleConfidence != 0 {
		out.Sample = w.SampleConfidence
	}
	return out
}

// ResearchConfig mirrors research.{enabled,model,maxSearchesPerIter,timeoutMs}.
type ResearchConfig struct {
	Enabled            bool   `json:"enabled,omitempty"`
	Model              string `json:"model,omitempty"`
	MaxSearchesPerIter int    `json:"maxSearchesPerIter,omitempty"`
	TimeoutMs          int    `json:"timeoutMs,omitempty"`
}

// ModelRouting mirrors modelRouting.{optimize,fix,plan}: oracle routing hints.
type ModelRouting struct {
	Optimize string `json:"optimize,omitempty"`
	Fix      string `json:"fix,omitempty"`
	Plan     string `json:"plan,omitempty"`
}

// StrategyWiring mirrors assets.<ASSET>.strategies.<name> (§6).
type StrategyWiring struct {
	Coin            string    `json:"coin"`
	DataSource      string    `json:"dataSource"`
	Interval        string    `json:"interval"`
	StrategyFactory string    `json:"strategyFactory"`
	DateRange       DateRange `json:"dateRange,omitempty"`
	Profile         string    `json:"profile,omitempty"`
}

// AssetConfig mirrors assets.<ASSET>.{class, strategies.*}.
type AssetConfig struct {
	Class      string                    `json:"class,omitempty"`
	Strategies map[string]StrategyWiring `json:"strategies,omitempty"`
}

// EngineConfig mirrors the BacktestConfig fields from spec.md §3, carried
// into the on-disk document so a run's execution parameters are
// reproducible from the same file as its acceptance criteria.
type EngineConfig struct {
	InitialCapital       float64 `json:"initialCapital"`
	SizingMode           string  `json:"sizingMode"`
	RiskPerTradeUsd      float64 `json:"riskPerTradeUsd,omitempty"`
	CashPerTrade         float64 `json:"cashPerTrade,omitempty"`
	SlippageBps          float64 `json:"slippageBps,omitempty"`
	CommissionPct        float64 `json:"commissionPct,omitempty"`
	CooldownBars         int     `json:"cooldownBars,omitempty"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses,omitempty"`
	MaxDailyLossR        float64 `json:"maxDailyLossR,omitempty"`
	MaxTradesPerDay      int     `json:"maxTradesPerDay,omitempty"`
	MaxGlobalTradesDay   int     `json:"maxGlobalTradesDay,omitempty"`
}

// ToEngineConfig converts the on-disk execution parameters to engine.Config.
func (e EngineConfig) ToEngineConfig() (engine.Config, error) {
	var mode engine.SizingMode
	switch e.SizingMode {
	case "", "risk":
		mode = engine.SizingRisk
	case "cash":
		mode = engine.SizingCash
	default:
		return engine.Config{}, fmt.Errorf("config: unrecognized sizingMode %q", e.SizingMode)
	}
	return engine.Config{
		InitialCapital:       e.InitialCapital,
		SizingMode:           mode,
		RiskPerTradeUsd:      e.RiskPerTradeUsd,
		CashPerTrade:         e.CashPerTrade,
		SlippageBps:          e.SlippageBps,
		CommissionPct:        e.CommissionPct,
		CooldownBars:         e.CooldownBars,
		MaxConsecutiveLosses: e.MaxConsecutiveLosses,
		MaxDailyLossR:        e.MaxDailyLossR,
		MaxTradesPerDay:      e.MaxTradesPerDay,
		MaxGlobalTradesDay:   e.MaxGlobalTradesDay,
	}, nil
}

// Document is the full on-disk configuration file shape (§6).
type Document struct {
	Criteria         optimize.Criteria            `json:"criteria,omitempty"`
	AssetClasses     map[string]optimize.Criteria `json:"assetClasses,omitempty"`
	StrategyProfiles map[string]optimize.Criteria `json:"strategyProfiles,omitempty"`
	Assets           map[string]AssetConfig       `json:"assets,omitempty"`
	DateRange        DateRange                    `json:"dateRange,omitempty"`
	Guardrails       GuardrailsConfig              `json:"guardrails,omitempty"`
	Phases           PhaseBudget                   `json:"phases,omitempty"`
	Scoring          struct {
		Weights ScoringWeights `json:"weights,omitempty"`
	} `json:"scoring,omitempty"`
	Research     ResearchConfig `json:"research,omitempty"`
	ModelRouting ModelRouting   `json:"modelRouting,omitempty"`
	Engine       EngineConfig   `json:"engine,omitempty"`
}

// Load parses a configuration document from path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return doc, nil
}

// LoadEnv loads upstream API credentials from a .env file, matching the
// teacher's global/env-var credential fallback chain in
// market/historical.go (GetKlinesRange). Missing files are not an error:
// credentials may already be in the process environment.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

// ResolveCriteria applies the three-tier override chain (§6): global ⊕
// assetClass ⊕ strategyProfile, rightmost wins per field.
func (d Document) ResolveCriteria(assetClass, profile string) optimize.Criteria {
	layers := []optimize.Criteria{d.Criteria}
	if c, ok := d.AssetClasses[assetClass]; ok {
		layers = append(layers, c)
	}
	if c, ok := d.StrategyProfiles[profile]; ok {
		layers = append(layers, c)
	}
	return optimize.MergeCriteria(layers...)
}

// ResolveDateRange returns an asset-strategy's effective date range,
// falling back to the document's global dateRange when unset.
func (d Document) ResolveDateRange(w StrategyWiring) DateRange {
	if w.DateRange.Start != "" || w.DateRange.End != "" || w.DateRange.Preset != "" {
		return w.DateRange
	}
	return d.DateRange
}

// CandleInterval parses an interval string from the document against the
// module's closed set of supported intervals.
func CandleInterval(raw string) (candle.Interval, error) {
	iv := candle.Interval(raw)
	if _, err := iv.Milliseconds(); err != nil {
		return "", fmt.Errorf("config: unrecognized interval %q: %w", raw, err)
	}
	return iv, nil
}
