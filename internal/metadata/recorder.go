// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Run metadata assembly and persistence

package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/rdagent-runner/internal/config"
	"github.com/quantfold/rdagent-runner/internal/harvest"
	"github.com/quantfold/rdagent-runner/internal/workspace"
)

// Statuses recorded in the run-metadata document.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// RunOutcome is the single audit record for one run. Written once at the
// end of the pipeline and never mutated afterward.
type RunOutcome struct {
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time"`
	DurationSeconds   float64 `json:"duration_seconds"`
	Status            string  `json:"status"`
	ReturnCode        int     `json:"return_code"`
	MaxIterations     int     `json:"max_iterations"`
	ChatModel         string  `json:"chat_model"`
	EmbeddingModel    string  `json:"embedding_model"`
	FactorsDiscovered int     `json:"factors_discovered"`
	FactorsPath       *string `json:"factors_path"`
	WorkspaceDir      string  `json:"workspace_dir"`
}

// Recorder assembles and persists run outcomes.
type Recorder struct {
	log *zap.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(log *zap.Logger) *Recorder {
	return &Recorder{log: log}
}

// Record assembles the audit record. Status is computed purely from the
// return code. The factor count is re-read from factorsPath; a read or
// parse failure degrades to a count of 0 with a warning, never an error.
func (r *Recorder) Record(cfg *config.Config, start, end time.Time, returnCode int, workspaceDir, factorsPath string) RunOutcome {
	status := StatusFailed
	if returnCode == 0 {
		status = StatusSuccess
	}

	outcome := RunOutcome{
		StartTime:         start.Format(time.RFC3339),
		EndTime:           end.Format(time.RFC3339),
		DurationSeconds:   math.Round(end.Sub(start).Seconds()*100) / 100,
		Status:            status,
		ReturnCode:        returnCode,
		MaxIterations:     cfg.Agent.MaxIterations,
		ChatModel:         cfg.LLM.ChatModel,
		EmbeddingModel:    cfg.LLM.EmbeddingModel,
		FactorsDiscovered: r.countFactors(factorsPath),
		WorkspaceDir:      workspaceDir,
	}
	if factorsPath != "" {
		outcome.FactorsPath = &factorsPath
	}
	return outcome
}

// Persist serializes the outcome as run_metadata.json under the workspace.
// A run whose outcome cannot be durably recorded is indistinguishable from
// one that never happened, so this failure propagates.
func (r *Recorder) Persist(outcome RunOutcome, workspaceDir string) error {
	raw, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run metadata: %w", err)
	}

	path := filepath.Join(workspaceDir, workspace.MetadataFileName)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write run metadata %s: %w", path, err)
	}

	r.log.Info("run metadata written", zap.String("path", path))
	return nil
}

// countFactors returns the number of records in the factors document, or 0
// when the path is empty or the document is missing or malformed.
func (r *Recorder) countFactors(factorsPath string) int {
	if factorsPath == "" {
		return 0
	}

	raw, err := os.ReadFile(factorsPath)
	if err != nil {
		r.log.Warn("failed to read factors document",
			zap.String("path", factorsPath), zap.Error(err))
		return 0
	}

	var doc harvest.FactorsDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		r.log.Warn("failed to parse factors document",
			zap.String("path", factorsPath), zap.Error(err))
		return 0
	}
	return len(doc.Factors)
}
