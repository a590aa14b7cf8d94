// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Run orchestration: verify, stage, launch, harvest, record

package pipeline

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/config"
	"github.com/quantfold/rdagent-runner/internal/harvest"
	"github.com/quantfold/rdagent-runner/internal/metadata"
	"github.com/quantfold/rdagent-runner/internal/overlay"
	"github.com/quantfold/rdagent-runner/internal/patcher"
	"github.com/quantfold/rdagent-runner/internal/prereq"
	"github.com/quantfold/rdagent-runner/internal/supervisor"
	"github.com/quantfold/rdagent-runner/internal/workspace"
)

//go:embed prepare_data.py
var prepScript []byte

// Pipeline supervises exactly one agent run at a time on the local host.
// It must not be invoked concurrently within one process: the workspace and
// the patched files are exclusively owned by the run that created them.
type Pipeline struct {
	// Verifier and Locator are exported so tests can substitute fake tool
	// discovery; everything else is deterministic.
	Verifier *prereq.Verifier
	Locator  prereq.ToolLocator

	cfg       *config.Config
	log       *zap.Logger
	sup       *supervisor.Supervisor
	harvester *harvest.Harvester
	recorder  *metadata.Recorder
	state     State
}

// New wires a pipeline from its default components.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	return &Pipeline{
		Verifier:  prereq.NewVerifier(log),
		Locator:   prereq.CondaLocator{},
		cfg:       cfg,
		log:       log,
		sup:       supervisor.New(log),
		harvester: harvest.NewHarvester(log),
		recorder:  metadata.NewRecorder(log),
		state:     StateNotStarted,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State { return p.state }

// Run executes one full run. Failures before the agent is launched abort
// with an error and no workspace side effects beyond verification; once
// the agent has been launched, failures become recorded outcomes, because
// partial artifacts are still valuable. Only prerequisite failures and
// required post-run writes surface as errors.
func (p *Pipeline) Run(ctx context.Context) (*metadata.RunOutcome, error) {
	// Verify
	p.state = StateVerifying
	if err := p.Verifier.Verify(ctx, p.cfg); err != nil {
		p.state = StateAborted
		return nil, err
	}

	condaBin, err := p.Locator.Locate()
	if err != nil {
		p.state = StateAborted
		return nil, err
	}

	// Stage environment
	p.state = StateStagingEnv
	env := overlay.Build(p.cfg, overlay.FromEnviron(os.Environ()))
	envList := overlay.ToEnviron(env)
	dataPath := p.cfg.ResolvedDataPath()

	startTime := time.Now()
	ws, err := workspace.Allocate(config.ResolvePath(p.cfg.Agent.WorkspaceDir), startTime)
	if err != nil {
		p.state = StateAborted
		return nil, err
	}
	p.log.Info("workspace allocated", zap.String("path", ws.Path))

	// Stage and patch the data-preparation helper, then run it. The helper
	// bypasses the agent's Docker-based preparation; its failure is logged
	// but never aborts the run.
	p.state = StatePatching
	patch := patcher.New(dataPath, p.log)
	if err := os.WriteFile(ws.PrepScript(), prepScript, 0644); err != nil {
		p.log.Warn("could not stage data-preparation helper", zap.Error(err))
	} else {
		if _, err := patch.PatchFile(ws.PrepScript()); err != nil {
			p.log.Warn("could not patch data-preparation helper", zap.Error(err))
		}
		p.log.Info("running data preparation")
		p.sup.RunBestEffort(ctx,
			[]string{condaBin, "run", "-n", p.cfg.Agent.CondaEnvName, "python", workspace.PrepScriptName, dataPath},
			ws.Path, envList)
	}

	// Launch the agent and block until it exits. Non-zero exit is data.
	p.state = StateLaunched
	argv := []string{condaBin, "run", "-n", p.cfg.Agent.CondaEnvName, "rdagent", "fin_factor"}
	outcome, err := p.sup.Run(ctx, argv, ws.Path, envList)
	if err != nil {
		p.state = StateAborted
		return nil, fmt.Errorf("failed to launch agent: %w", err)
	}
	p.state = StateExited
	endTime := time.Now()

	if outcome.ReturnCode == 0 {
		p.log.Info("agent completed", zap.Int("return_code", 0))
	} else {
		p.log.Error("agent exited non-zero, attempting partial harvest",
			zap.Int("return_code", outcome.ReturnCode))
	}

	// Harvest whatever the agent left behind, success or failure. The
	// generated code is patched first so harvested artifacts stay runnable.
	p.state = StateHarvesting
	if _, err := patch.PatchTree(ws.Path); err != nil {
		p.log.Warn("workspace patch pass failed", zap.Error(err))
	}
	factorsPath, factors, err := p.harvester.Harvest(ws.Path)
	if err != nil {
		return nil, err
	}
	if factorsPath != "" {
		p.log.Info("factors harvested", zap.Int("count", len(factors)))
	}

	// Record the outcome. Persist failure propagates: a run whose outcome
	// cannot be recorded is indistinguishable from one that never happened.
	record := p.recorder.Record(p.cfg, startTime, endTime, outcome.ReturnCode, ws.Path, factorsPath)
	if err := p.recorder.Persist(record, ws.Path); err != nil {
		return nil, err
	}
	p.state = StateMetadataWritten

	return &record, nil
}
