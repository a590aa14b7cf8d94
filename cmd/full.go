/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/pipeline"
	"github.com/quantfold/rdagent-runner/internal/storage"
	"github.com/quantfold/rdagent-runner/internal/workspace"
)

var skipSync bool

// fullCmd represents the full command
var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run the complete pipeline: sync, run, upload",
	Long: `Download the latest shared data, launch one RD-Agent run, and upload
the discovered factors and the run log to object storage.

Examples:
  rdrun full
  rdrun full --skip-sync --max-iterations 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		client, err := storage.NewClient(cfg.Storage, log)
		if err != nil {
			return err
		}
		bridge := storage.NewBridge(client, cfg, log)

		// Step 1: sync
		if skipSync {
			log.Info("[1/3] skipping sync")
		} else {
			log.Info("[1/3] downloading shared data")
			if _, err := bridge.DownloadSharedData(cmd.Context()); err != nil {
				return err
			}
		}

		// Step 2: run
		if maxIterations > 0 {
			cfg.Agent.MaxIterations = maxIterations
		}
		log.Info("[2/3] launching RD-Agent",
			zap.Int("max_iterations", cfg.Agent.MaxIterations))
		outcome, err := pipeline.New(cfg, log).Run(cmd.Context())
		if err != nil {
			return err
		}

		// Step 3: upload results
		if outcome.FactorsPath != nil {
			log.Info("[3/3] uploading discovered factors")
			if err := bridge.UploadFactors(cmd.Context(), *outcome.FactorsPath); err != nil {
				return err
			}
			if err := keepLocalCopy(*outcome.FactorsPath, cfg.Storage.LocalFactorsDir); err != nil {
				log.Warn("could not keep local factors copy", zap.Error(err))
			}
		} else {
			log.Warn("[3/3] no factors to upload")
		}
		if err := bridge.UploadRunLog(cmd.Context(), *outcome); err != nil {
			return err
		}

		fmt.Printf("Pipeline complete — status: %s, factors: %d\n",
			outcome.Status, outcome.FactorsDiscovered)
		printOutcome(outcome)
		return nil
	},
}

func init() {
	fullCmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Skip the sync step (use existing local data)")
	fullCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override max RD-Agent iterations")
	rootCmd.AddCommand(fullCmd)
}

// keepLocalCopy copies the factors document into the local factors
// directory for reference.
func keepLocalCopy(factorsPath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	src, err := os.Open(factorsPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(destDir, workspace.FactorsFileName))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
