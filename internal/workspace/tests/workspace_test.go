// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for workspace allocation

package tests

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfold/rdagent-runner/internal/workspace"
)

func TestAllocateTokenFromStartTime(t *testing.T) {
	base := t.TempDir()
	start := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	ws, err := workspace.Allocate(base, start)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if ws.Token != "20260102_150405" {
		t.Errorf("token = %q, want 20260102_150405", ws.Token)
	}
	if ws.Path != filepath.Join(base, "20260102_150405") {
		t.Errorf("path = %q", ws.Path)
	}
	if !ws.Exists() {
		t.Error("workspace directory should exist after Allocate")
	}
}

func TestAllocateCreatesParents(t *testing.T) {
	base := filepath.Join(t.TempDir(), "deep", "nested", "workspace")

	ws, err := workspace.Allocate(base, time.Now())
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if !ws.Exists() {
		t.Error("workspace with missing parents should still be created")
	}
}

func TestPrepScriptPath(t *testing.T) {
	base := t.TempDir()
	ws, err := workspace.Allocate(base, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if ws.PrepScript() != filepath.Join(ws.Path, workspace.PrepScriptName) {
		t.Errorf("PrepScript = %q", ws.PrepScript())
	}
}

func TestExistsFalseAfterRemoval(t *testing.T) {
	base := t.TempDir()
	ws, err := workspace.Allocate(base, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(ws.Path); err != nil {
		t.Fatal(err)
	}
	if ws.Exists() {
		t.Error("Exists should report false after removal")
	}
}
