// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Prerequisite failure kinds and tool discovery

package prereq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrorKind classifies a prerequisite failure.
type ErrorKind int

const (
	// DataMissing means the qlib data directory is absent or empty.
	DataMissing ErrorKind = iota
	// ToolMissing means the conda executable could not be located.
	ToolMissing
	// ToolBroken means conda exists but does not report a usable version.
	ToolBroken
	// EnvMissing means the named conda environment does not exist.
	EnvMissing
	// CredentialMissing means a required API key is empty.
	CredentialMissing
)

// String returns a short label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case DataMissing:
		return "data-missing"
	case ToolMissing:
		return "tool-missing"
	case ToolBroken:
		return "tool-broken"
	case EnvMissing:
		return "env-missing"
	case CredentialMissing:
		return "credential-missing"
	default:
		return "unknown"
	}
}

// Error is a typed prerequisite failure. The pipeline aborts before
// launching anything when Verify returns one.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("prerequisite failed (%s): %s", e.Kind, e.Message)
}

// ToolLocator finds the runtime-manager executable. Injectable so tests can
// supply a fake instead of touching PATH or the real filesystem.
type ToolLocator interface {
	Locate() (string, error)
}

// CondaLocator is the default ToolLocator: PATH first, then conventional
// Miniforge/Miniconda/Anaconda installation directories. First match wins.
type CondaLocator struct{}

// Locate returns the absolute path to the conda binary.
func (CondaLocator) Locate() (string, error) {
	if path, err := exec.LookPath("conda"); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "miniforge3", "bin", "conda"),
		filepath.Join(home, "miniforge3", "condabin", "conda"),
		filepath.Join(home, "miniconda3", "bin", "conda"),
		filepath.Join(home, "miniconda3", "condabin", "conda"),
		filepath.Join(home, "anaconda3", "bin", "conda"),
		"/opt/conda/bin/conda",
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("conda executable not found on PATH or in standard locations: %s",
		strings.Join(candidates, ", "))
}

// Prober runs the runtime manager for diagnostics. Injectable for tests.
type Prober interface {
	// Version returns the tool's version banner.
	Version(ctx context.Context, bin string) (string, error)
	// EnvNames returns the names of the environments the tool knows about.
	EnvNames(ctx context.Context, bin string) ([]string, error)
}

// condaProber probes a real conda binary.
type condaProber struct{}

const probeTimeout = 30 * time.Second

func (condaProber) Version(ctx context.Context, bin string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("conda --version failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (condaProber) EnvNames(ctx context.Context, bin string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "env", "list", "--json").Output()
	if err != nil {
		return nil, fmt.Errorf("conda env list failed: %w", err)
	}

	var listing struct {
		Envs []string `json:"envs"`
	}
	if err := json.Unmarshal(out, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse conda env list output: %w", err)
	}

	names := make([]string, 0, len(listing.Envs))
	for _, envPath := range listing.Envs {
		names = append(names, filepath.Base(envPath))
	}
	return names, nil
}
