// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Agent subprocess supervision

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExitOutcome is the observable result of a supervised subprocess. Non-zero
// exit is data, not an error; the caller decides what to do with it.
type ExitOutcome struct {
	ReturnCode int
	Duration   time.Duration
}

// Supervisor launches and waits on subprocesses. Standard streams are
// inherited directly from the parent so the agent's progress UI renders on
// the real terminal; nothing is captured or piped, which also means the
// supervisor only observes the final exit code.
type Supervisor struct {
	log *zap.Logger
}

// New creates a supervisor.
func New(log *zap.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// Run launches argv with the given working directory and full environment,
// then blocks until the subprocess exits or ctx is cancelled. The returned
// error is non-nil only when the process could not be started or was
// cancelled; a non-zero exit code comes back in the outcome.
func (s *Supervisor) Run(ctx context.Context, argv []string, dir string, env []string) (ExitOutcome, error) {
	if len(argv) == 0 {
		return ExitOutcome{}, fmt.Errorf("empty command")
	}

	s.log.Info("launching subprocess",
		zap.String("command", strings.Join(argv, " ")),
		zap.String("cwd", dir))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	err := cmd.Run()
	outcome := ExitOutcome{Duration: time.Since(start)}

	if err != nil {
		if ctx.Err() != nil {
			return outcome, fmt.Errorf("subprocess cancelled: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outcome.ReturnCode = exitErr.ExitCode()
			s.log.Warn("subprocess exited non-zero",
				zap.Int("return_code", outcome.ReturnCode),
				zap.Duration("duration", outcome.Duration))
			return outcome, nil
		}
		return outcome, fmt.Errorf("failed to run %s: %w", argv[0], err)
	}

	s.log.Info("subprocess completed",
		zap.Duration("duration", outcome.Duration))
	return outcome, nil
}

// RunBestEffort runs argv like Run but degrades every failure to a log
// line. Used for the data-preparation helper, whose failure must not abort
// the pipeline.
func (s *Supervisor) RunBestEffort(ctx context.Context, argv []string, dir string, env []string) {
	outcome, err := s.Run(ctx, argv, dir, env)
	if err != nil {
		s.log.Error("best-effort step failed to run", zap.Error(err))
		return
	}
	if outcome.ReturnCode != 0 {
		s.log.Error("best-effort step exited non-zero",
			zap.Int("return_code", outcome.ReturnCode))
	}
}
