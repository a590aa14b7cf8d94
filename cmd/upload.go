/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quantfold/rdagent-runner/internal/config"
	"github.com/quantfold/rdagent-runner/internal/storage"
	"github.com/quantfold/rdagent-runner/internal/workspace"
)

var factorsPathFlag string

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload discovered factors to object storage",
	Long: `Upload a discovered-factors document to the remote output prefix.
When --factors-path is not given, the newest run workspace and the local
factors directory are searched in that order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		factorsPath := factorsPathFlag
		if factorsPath == "" {
			factorsPath = findFactorsDocument(cfg)
		}
		if factorsPath == "" {
			return fmt.Errorf("no %s found; specify --factors-path or run the agent first",
				workspace.FactorsFileName)
		}

		client, err := storage.NewClient(cfg.Storage, log)
		if err != nil {
			return err
		}
		bridge := storage.NewBridge(client, cfg, log)

		if err := bridge.UploadFactors(cmd.Context(), factorsPath); err != nil {
			return err
		}
		fmt.Printf("Upload complete: %s\n", factorsPath)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&factorsPathFlag, "factors-path", "", "Path to the factors document (auto-detected if not set)")
	rootCmd.AddCommand(uploadCmd)
}

// findFactorsDocument looks for the newest run workspace holding a factors
// document, then falls back to the local factors directory.
func findFactorsDocument(cfg *config.Config) string {
	baseDir := config.ResolvePath(cfg.Agent.WorkspaceDir)
	entries, err := os.ReadDir(baseDir)
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
		// Workspace tokens are timestamps, so lexical order is run order.
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
		for _, name := range names {
			candidate := filepath.Join(baseDir, name, workspace.FactorsFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}

	candidate := filepath.Join(cfg.Storage.LocalFactorsDir, workspace.FactorsFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
