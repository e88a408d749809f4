package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const metadataFile = "run_metadata.json"

// RunMetadata is the persisted summary of one pipeline execution.
type RunMetadata struct {
	RunID           string          `json:"run_id"`
	Status          Status          `json:"status"`
	GatesPassed     map[string]bool `json:"gates_passed"`
	Gates           []Gate          `json:"gates"`
	DurationSeconds float64         `json:"duration_seconds"`
	ErrorMessage    *string         `json:"error_message"`
	ExitCode        int             `json:"exit_code"`
	PytestSummary   *string         `json:"pytest_summary"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SaveRunMetadata writes logs/run_metadata.json for the run.
func (m *Manager) SaveRunMetadata(runID string, res *Result) error {
	meta := RunMetadata{
		RunID:           res.RunID,
		Status:          res.Status,
		GatesPassed:     make(map[string]bool, len(res.Gates)),
		Gates:           res.Gates,
		DurationSeconds: res.Duration.Seconds(),
		ErrorMessage:    optional(res.ErrorMessage),
		ExitCode:        res.ExitCode,
		PytestSummary:   optional(res.TestSummary),
	}
	for _, g := range res.Gates {
		meta.GatesPassed[g.Name] = g.Passed
	}

	if err := validRunID(runID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	dir := filepath.Join(m.RunPath(runID), logsDir)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// LoadRunMetadata reads the metadata saved for a run.
func (m *Manager) LoadRunMetadata(runID string) (*RunMetadata, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(m.RunPath(runID), logsDir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s has no metadata", ErrUnknownRun, runID)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}
