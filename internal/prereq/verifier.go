// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Prerequisite verification before launching the agent

package prereq

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/config"
)

// Verifier checks that everything a run needs is present. It is purely
// diagnostic and has no side effects.
type Verifier struct {
	Locator ToolLocator
	Prober  Prober
	log     *zap.Logger
}

// NewVerifier creates a verifier with the default conda locator and prober.
func NewVerifier(log *zap.Logger) *Verifier {
	return &Verifier{
		Locator: CondaLocator{},
		Prober:  condaProber{},
		log:     log,
	}
}

// Verify runs all prerequisite checks in a fixed order and returns the
// first failure as a *Error. Checks:
//
//  1. qlib data directory exists and is non-empty
//  2. conda executable is discoverable
//  3. conda reports a usable version
//  4. the named conda environment exists
//  5. each required API key is non-empty
func (v *Verifier) Verify(ctx context.Context, cfg *config.Config) error {
	// 1. Data directory
	dataPath := cfg.ResolvedDataPath()
	entries, err := os.ReadDir(dataPath)
	if err != nil {
		return &Error{Kind: DataMissing,
			Message: fmt.Sprintf("qlib data directory does not exist: %s", dataPath)}
	}
	if len(entries) == 0 {
		return &Error{Kind: DataMissing,
			Message: fmt.Sprintf("qlib data directory is empty: %s", dataPath)}
	}
	v.log.Info("qlib data ok", zap.Int("items", len(entries)), zap.String("path", dataPath))

	// 2. Conda executable
	condaBin, err := v.Locator.Locate()
	if err != nil {
		return &Error{Kind: ToolMissing, Message: err.Error()}
	}

	// 3. Conda version
	version, err := v.Prober.Version(ctx, condaBin)
	if err != nil {
		return &Error{Kind: ToolBroken,
			Message: fmt.Sprintf("%s is not usable: %v", condaBin, err)}
	}
	v.log.Info("conda ok", zap.String("version", version), zap.String("bin", condaBin))

	// 4. Named environment
	names, err := v.Prober.EnvNames(ctx, condaBin)
	if err != nil {
		return &Error{Kind: ToolBroken,
			Message: fmt.Sprintf("cannot list conda environments: %v", err)}
	}
	if !contains(names, cfg.Agent.CondaEnvName) {
		return &Error{Kind: EnvMissing,
			Message: fmt.Sprintf("conda env %q not found, available: %s",
				cfg.Agent.CondaEnvName, strings.Join(names, ", "))}
	}
	v.log.Info("conda env found", zap.String("env", cfg.Agent.CondaEnvName))

	// 5. Credentials
	if cfg.LLM.ChatAPIKey == "" {
		return &Error{Kind: CredentialMissing,
			Message: "VOLCENGINE_API_KEY is not set; add it to .env or the environment"}
	}
	if cfg.LLM.EmbeddingAPIKey == "" {
		return &Error{Kind: CredentialMissing,
			Message: "AIHUBMIX_API_KEY is not set; add it to .env or the environment"}
	}
	v.log.Info("API keys configured")

	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
