// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Per-run workspace allocation

package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// TimestampFormat is the directory-name token derived from the run's
	// start time.
	TimestampFormat = "20060102_150405"

	// FactorsFileName is the harvester's output document.
	FactorsFileName = "discovered_factors.yaml"
	// MetadataFileName is the run-metadata document.
	MetadataFileName = "run_metadata.json"
	// PrepScriptName is the data-preparation helper copied into the
	// workspace before launch.
	PrepScriptName = "prepare_data.py"
)

// Workspace is the directory root for all files one run reads and writes.
// It is created once per run and never reused or deleted by the pipeline;
// retention is an external policy.
type Workspace struct {
	Path    string
	BaseDir string
	Token   string
}

// Allocate creates the run's workspace directory under baseDir, named by a
// timestamp token derived from startTime (not wall clock at call time, so
// tests are reproducible). Parents are created as needed.
func Allocate(baseDir string, startTime time.Time) (*Workspace, error) {
	token := startTime.Format(TimestampFormat)
	path := filepath.Join(baseDir, token)

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory %s: %w", path, err)
	}

	return &Workspace{
		Path:    path,
		BaseDir: baseDir,
		Token:   token,
	}, nil
}

// PrepScript returns the path of the data-preparation helper.
func (w *Workspace) PrepScript() string {
	return filepath.Join(w.Path, PrepScriptName)
}

// Exists reports whether the workspace directory exists.
func (w *Workspace) Exists() bool {
	info, err := os.Stat(w.Path)
	return err == nil && info.IsDir()
}
