/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/metadata"
	"github.com/quantfold/rdagent-runner/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch one RD-Agent run locally",
	Long: `Verify prerequisites, stage a fresh workspace, launch the RD-Agent
qlib scenario inside its conda environment, and harvest discovered factors
when it exits. A non-zero agent exit still harvests whatever partial output
the agent left behind.

Examples:
  rdrun run
  rdrun run --max-iterations 5
  rdrun run --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if maxIterations > 0 {
			cfg.Agent.MaxIterations = maxIterations
			log.Info("overriding max iterations", zap.Int("max_iterations", maxIterations))
		}

		outcome, err := pipeline.New(cfg, log).Run(cmd.Context())
		if err != nil {
			return err
		}

		printOutcome(outcome)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override max RD-Agent iterations")
	rootCmd.AddCommand(runCmd)
}

// printOutcome summarizes a finished run on stdout.
func printOutcome(outcome *metadata.RunOutcome) {
	fmt.Println("\n─────────────────────────────────────")
	fmt.Println("Run Summary")
	fmt.Println("─────────────────────────────────────")
	fmt.Printf("Status:       %s (exit code %d)\n", outcome.Status, outcome.ReturnCode)
	fmt.Printf("Duration:     %.0fs\n", outcome.DurationSeconds)
	fmt.Printf("Workspace:    %s\n", outcome.WorkspaceDir)
	fmt.Printf("Factors:      %d\n", outcome.FactorsDiscovered)
	if outcome.FactorsPath != nil {
		fmt.Printf("Factors file: %s\n", *outcome.FactorsPath)
	}
}
