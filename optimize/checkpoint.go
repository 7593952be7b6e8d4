package optimize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// checkpoint file names within a per-strategy directory (§6).
const (
	checkpointSourceFile  = "best-strategy.ts.bak"
	checkpointParamsFile  = "best-params.json"
	checkpointMetricsFile = "best-metrics.json"
)

// CheckpointMetrics is the metrics+iter+timestamp payload written to
// best-metrics.json.
type CheckpointMetrics struct {
	Metrics   map[string]float64 `json:"metrics"`
	Iter      int                `json:"iter"`
	Timestamp string             `json:"timestamp"` // RFC3339, stamped by the caller
	// RunID is the owning ParameterHistory.RunID, so a checkpoint found on
	// disk can be traced back to the run that produced it (§4.8b).
	RunID string `json:"runId,omitempty"`
}

// Checkpoint is the best-scoring iteration's snapshot (§3): the strategy's
// source text (for structural rollback), its parameter overrides, and its
// metrics. Exactly one "best" checkpoint exists per strategy directory.
type Checkpoint struct {
	Source    string
	Overrides map[string]float64
	Metrics   CheckpointMetrics
}

// SaveCheckpoint atomically writes all three checkpoint files into dir
// (created if absent), per §4.8b.
func SaveCheckpoint(dir string, c Checkpoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("optimize: checkpoint dir: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, checkpointSourceFile), []byte(c.Source), 0o644); err != nil {
		return fmt.Errorf("optimize: save checkpoint source: %w", err)
	}

	overridesJSON, err := json.MarshalIndent(c.Overrides, "", "  ")
	if err != nil {
		return fmt.Errorf("optimize: marshal checkpoint overrides: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, checkpointParamsFile), overridesJSON, 0o644); err != nil {
		return fmt.Errorf("optimize: save checkpoint overrides: %w", err)
	}

	metricsJSON, err := json.MarshalIndent(c.Metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("optimize: marshal checkpoint metrics: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, checkpointMetricsFile), metricsJSON, 0o644); err != nil {
		return fmt.Errorf("optimize: save checkpoint metrics: %w", err)
	}

	return nil
}

// LoadCheckpoint reads a checkpoint directory written by SaveCheckpoint.
func LoadCheckpoint(dir string) (Checkpoint, error) {
	var c Checkpoint

	source, err := os.ReadFile(filepath.Join(dir, checkpointSourceFile))
	if err != nil {
		return c, fmt.Errorf("optimize: load checkpoint source: %w", err)
	}
	c.Source = string(source)

	overridesJSON, err := os.ReadFile(filepath.Join(dir, checkpointParamsFile))
	if err != nil {
		return c, fmt.Errorf("optimize: load checkpoint overrides: %w", err)
	}
	if err := json.Unmarshal(overridesJSON, &c.Overrides); err != nil {
		return c, fmt.Errorf("optimize: parse checkpoint overrides: %w", err)
	}

	metricsJSON, err := os.ReadFile(filepath.Join(dir, checkpointMetricsFile))
	if err != nil {
		return c, fmt.Errorf("optimize: load checkpoint metrics: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &c.Metrics); err != nil {
		return c, fmt.Errorf("optimize: parse checkpoint metrics: %w", err)
	}

	return c, nil
}

// CheckpointExists reports whether dir already holds a complete checkpoint.
func CheckpointExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, checkpointMetricsFile))
	return err == nil
}
