package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/axton-labs/backtrader/engine"
	"github.com/axton-labs/backtrader/optimize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ParsesFullDocument(t *testing.T) {
	path := writeTempConfig(t, `{
		"criteria": {"minTrades": 10, "minPF": 1.2},
		"assetClasses": {"major": {"minTrades": 20}},
		"strategyProfiles": {"aggressive": {"minPF": 1.5}},
		"dateRange": {"start": "2024-01-01", "end": "2024-06-01"},
		"guardrails": {"protectedFields": ["stopDistance"], "maxAtrMult": 5, "minAtrMult": 0.5},
		"phases": {"refine": {"maxIter": 8}, "maxCycles": 3},
		"scoring": {"weights": {"pf": 30}},
		"research": {"enabled": true, "model": "gpt-5", "timeoutMs": 30000},
		"modelRouting": {"optimize": "gpt-5", "fix": "gpt-5-mini"},
		"engine": {"initialCapital": 10000, "sizingMode": "risk", "riskPerTradeUsd": 25}
	}`)

	doc, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, doc.Criteria.MinTrades)
	assert.Equal(t, 10, *doc.Criteria.MinTrades)
	assert.True(t, doc.Research.Enabled)
	assert.Equal(t, "gpt-5", doc.ModelRouting.Optimize)
	assert.Equal(t, 10000.0, doc.Engine.InitialCapital)
}

func TestResolveCriteria_ThreeTierOverrideRightmostWins(t *testing.T) {
	minTrades10, minPF1_2, minTrades20, minPF1_5 := 10, 1.2, 20, 1.5
	doc := Document{
		Criteria:         optimize.Criteria{MinTrades: &minTrades10, MinPF: &minPF1_2},
		AssetClasses:     map[string]optimize.Criteria{"major": {MinTrades: &minTrades20}},
		StrategyProfiles: map[string]optimize.Criteria{"aggressive": {MinPF: &minPF1_5}},
	}

	resolved := doc.ResolveCriteria("major", "aggressive")
	require.NotNil(t, resolved.MinTrades)
	require.NotNil(t, resolved.MinPF)
	assert.Equal(t, 20, *resolved.MinTrades)
	assert.Equal(t, 1.5, *resolved.MinPF)
}

func TestDateRange_Resolve_ExplicitBounds(t *testing.T) {
	r := DateRange{Start: "2024-01-01", End: "2024-01-02"}
	start, end, err := r.Resolve(time.Now())
	require.NoError(t, err)
	assert.Less(t, start, end)
}

func TestDateRange_Resolve_LastNPreset(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := DateRange{Preset: "last30"}
	start, end, err := r.Resolve(now)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), end)
	assert.Equal(t, now.AddDate(0, 0, -30).UnixMilli(), start)
}

func TestDateRange_Resolve_CustomPreset(t *testing.T) {
	r := DateRange{Preset: "custom:2024-01-01:2024-02-01"}
	start, end, err := r.Resolve(time.Now())
	require.NoError(t, err)
	assert.Less(t, start, end)
}

func TestDateRange_Resolve_RejectsUnrecognizedPreset(t *testing.T) {
	r := DateRange{Preset: "bogus"}
	_, _, err := r.Resolve(time.Now())
	assert.Error(t, err)
}

func TestPhaseBudget_ToMaxIterPerPhase_FallsBackToDefault(t *testing.T) {
	p := PhaseBudget{Refine: PhaseIterBudget{MaxIter: 8}}
	m := p.ToMaxIterPerPhase(5)
	assert.Equal(t, 8, m[optimize.PhaseRefine])
	assert.Equal(t, 5, m[optimize.PhaseResearch])
	assert.Equal(t, 5, m[optimize.PhaseRestructure])
}

func TestScoringWeights_ToWeights_FallsBackFieldByField(t *testing.T) {
	w := ScoringWeights{PF: 40}
	out := w.ToWeights()
	assert.Equal(t, 40.0, out.PF)
	assert.Equal(t, optimize.DefaultWeights().AvgR, out.AvgR)
}

func TestEngineConfig_ToEngineConfig_RejectsUnknownSizingMode(t *testing.T) {
	e := EngineConfig{SizingMode: "bogus"}
	_, err := e.ToEngineConfig()
	assert.Error(t, err)
}

func TestEngineConfig_ToEngineConfig_DefaultsToRiskMode(t *testing.T) {
	e := EngineConfig{InitialCapital: 5000}
	cfg, err := e.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.SizingRisk, cfg.SizingMode)
	assert.Equal(t, 5000.0, cfg.InitialCapital)
}

func TestCandleInterval_RejectsUnsupportedInterval(t *testing.T) {
	_, err := CandleInterval("7m")
	assert.Error(t, err)
}

func TestLoadEnv_MissingFileIsNotAnError(t *testing.T) {
	err := LoadEnv(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}
