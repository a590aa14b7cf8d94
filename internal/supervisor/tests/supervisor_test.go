// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for subprocess supervision

package tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/supervisor"
)

func TestRunZeroExit(t *testing.T) {
	s := supervisor.New(zap.NewNop())

	outcome, err := s.Run(context.Background(),
		[]string{"/bin/sh", "-c", "exit 0"}, t.TempDir(), os.Environ())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.ReturnCode != 0 {
		t.Errorf("return code = %d", outcome.ReturnCode)
	}
}

func TestRunNonZeroExitIsData(t *testing.T) {
	s := supervisor.New(zap.NewNop())

	outcome, err := s.Run(context.Background(),
		[]string{"/bin/sh", "-c", "exit 7"}, t.TempDir(), os.Environ())
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if outcome.ReturnCode != 7 {
		t.Errorf("return code = %d, want 7", outcome.ReturnCode)
	}
}

func TestRunKilledStyleExitCode(t *testing.T) {
	s := supervisor.New(zap.NewNop())

	outcome, err := s.Run(context.Background(),
		[]string{"/bin/sh", "-c", "exit 137"}, t.TempDir(), os.Environ())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.ReturnCode != 137 {
		t.Errorf("return code = %d, want 137", outcome.ReturnCode)
	}
}

func TestRunStartFailure(t *testing.T) {
	s := supervisor.New(zap.NewNop())

	if _, err := s.Run(context.Background(),
		[]string{filepath.Join(t.TempDir(), "no-such-binary")}, t.TempDir(), os.Environ()); err == nil {
		t.Error("unstartable command must surface an error")
	}
}

func TestRunEmptyCommand(t *testing.T) {
	s := supervisor.New(zap.NewNop())

	if _, err := s.Run(context.Background(), nil, t.TempDir(), os.Environ()); err == nil {
		t.Error("empty argv must surface an error")
	}
}

func TestRunCancellation(t *testing.T) {
	s := supervisor.New(zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Run(ctx, []string{"/bin/sh", "-c", "sleep 30"}, t.TempDir(), os.Environ())
	if err == nil {
		t.Fatal("cancelled run must surface an error")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	s := supervisor.New(zap.NewNop())
	dir := t.TempDir()

	outcome, err := s.Run(context.Background(),
		[]string{"/bin/sh", "-c", "pwd > marker.txt"}, dir, os.Environ())
	if err != nil || outcome.ReturnCode != 0 {
		t.Fatalf("Run failed: %v (code %d)", err, outcome.ReturnCode)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker.txt")); err != nil {
		t.Error("subprocess should run inside the given directory")
	}
}

func TestRunEnvironmentPassthrough(t *testing.T) {
	s := supervisor.New(zap.NewNop())
	dir := t.TempDir()
	env := append(os.Environ(), "SUPERVISED_MARKER=present")

	outcome, err := s.Run(context.Background(),
		[]string{"/bin/sh", "-c", "printf %s \"$SUPERVISED_MARKER\" > env.txt"}, dir, env)
	if err != nil || outcome.ReturnCode != 0 {
		t.Fatalf("Run failed: %v (code %d)", err, outcome.ReturnCode)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "env.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "present" {
		t.Errorf("subprocess env = %q", raw)
	}
}

func TestRunBestEffortNeverPanics(t *testing.T) {
	s := supervisor.New(zap.NewNop())

	// Failing command, failing start, both must only log.
	s.RunBestEffort(context.Background(),
		[]string{"/bin/sh", "-c", "exit 1"}, t.TempDir(), os.Environ())
	s.RunBestEffort(context.Background(),
		[]string{filepath.Join(t.TempDir(), "missing")}, t.TempDir(), os.Environ())
}
