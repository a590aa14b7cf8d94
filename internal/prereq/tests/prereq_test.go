// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for prerequisite verification

package tests

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/config"
	"github.com/quantfold/rdagent-runner/internal/prereq"
)

type fakeLocator struct {
	path string
	err  error
}

func (f fakeLocator) Locate() (string, error) { return f.path, f.err }

type fakeProber struct {
	version    string
	versionErr error
	envs       []string
	envsErr    error
}

func (f fakeProber) Version(ctx context.Context, bin string) (string, error) {
	return f.version, f.versionErr
}

func (f fakeProber) EnvNames(ctx context.Context, bin string) ([]string, error) {
	return f.envs, f.envsErr
}

func populatedDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "calendars"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			ChatAPIKey:      "chat-key",
			EmbeddingAPIKey: "embed-key",
		},
		Agent: config.AgentConfig{
			CondaEnvName: "rdagent4qlib",
			QlibDataPath: dataDir,
		},
	}
}

func healthyVerifier() *prereq.Verifier {
	v := prereq.NewVerifier(zap.NewNop())
	v.Locator = fakeLocator{path: "/usr/bin/conda"}
	v.Prober = fakeProber{version: "conda 24.1.0", envs: []string{"base", "rdagent4qlib"}}
	return v
}

func kindOf(t *testing.T, err error) prereq.ErrorKind {
	t.Helper()
	var pe *prereq.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *prereq.Error, got %T: %v", err, err)
	}
	return pe.Kind
}

func TestVerifyAllChecksPass(t *testing.T) {
	v := healthyVerifier()
	if err := v.Verify(context.Background(), testConfig(populatedDataDir(t))); err != nil {
		t.Errorf("healthy setup should verify: %v", err)
	}
}

func TestVerifyDataMissing(t *testing.T) {
	v := healthyVerifier()
	cfg := testConfig(filepath.Join(t.TempDir(), "absent"))

	err := v.Verify(context.Background(), cfg)
	if kindOf(t, err) != prereq.DataMissing {
		t.Errorf("kind = %v, want data-missing", err)
	}
}

func TestVerifyDataEmpty(t *testing.T) {
	v := healthyVerifier()
	cfg := testConfig(t.TempDir())

	err := v.Verify(context.Background(), cfg)
	if kindOf(t, err) != prereq.DataMissing {
		t.Errorf("kind = %v, want data-missing", err)
	}
}

func TestVerifyToolMissing(t *testing.T) {
	v := healthyVerifier()
	v.Locator = fakeLocator{err: errors.New("conda executable not found")}

	err := v.Verify(context.Background(), testConfig(populatedDataDir(t)))
	if kindOf(t, err) != prereq.ToolMissing {
		t.Errorf("kind = %v, want tool-missing", err)
	}
}

func TestVerifyToolBroken(t *testing.T) {
	v := healthyVerifier()
	v.Prober = fakeProber{versionErr: errors.New("exit status 127")}

	err := v.Verify(context.Background(), testConfig(populatedDataDir(t)))
	if kindOf(t, err) != prereq.ToolBroken {
		t.Errorf("kind = %v, want tool-broken", err)
	}
}

func TestVerifyEnvMissingListsAvailable(t *testing.T) {
	v := healthyVerifier()
	v.Prober = fakeProber{version: "conda 24.1.0", envs: []string{"base", "other"}}

	err := v.Verify(context.Background(), testConfig(populatedDataDir(t)))
	if kindOf(t, err) != prereq.EnvMissing {
		t.Fatalf("kind = %v, want env-missing", err)
	}
	if !strings.Contains(err.Error(), "base, other") {
		t.Errorf("message should list available envs: %v", err)
	}
}

func TestVerifyCredentialMissing(t *testing.T) {
	tests := []struct {
		name  string
		strip func(*config.Config)
		hint  string
	}{
		{"chat", func(c *config.Config) { c.LLM.ChatAPIKey = "" }, "VOLCENGINE_API_KEY"},
		{"embedding", func(c *config.Config) { c.LLM.EmbeddingAPIKey = "" }, "AIHUBMIX_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(populatedDataDir(t))
			tt.strip(cfg)

			err := healthyVerifier().Verify(context.Background(), cfg)
			if kindOf(t, err) != prereq.CredentialMissing {
				t.Fatalf("kind = %v, want credential-missing", err)
			}
			if !strings.Contains(err.Error(), tt.hint) {
				t.Errorf("message should name the variable: %v", err)
			}
		})
	}
}

func TestErrorKindLabels(t *testing.T) {
	tests := []struct {
		kind prereq.ErrorKind
		want string
	}{
		{prereq.DataMissing, "data-missing"},
		{prereq.ToolMissing, "tool-missing"},
		{prereq.ToolBroken, "tool-broken"},
		{prereq.EnvMissing, "env-missing"},
		{prereq.CredentialMissing, "credential-missing"},
	}
	for _, tt := range tests {
		if tt.kind.String() != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.kind, tt.kind.String(), tt.want)
		}
	}
}

func TestCondaLocatorHonorsPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "conda")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	found, err := prereq.CondaLocator{}.Locate()
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if found != bin {
		t.Errorf("Locate = %q, want %q", found, bin)
	}
}
