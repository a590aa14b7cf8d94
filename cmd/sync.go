/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/rdagent-runner/internal/storage"
)

var forceSync bool

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the scanner's shared data from object storage",
	Long: `Download the market scanner's shared export, verify its manifest,
and extract the qlib binary archive into the configured data path. Skipped
when local data is already up to date unless --force is set.`,
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

		if !forceSync {
			remote, err := bridge.CheckRemoteFreshness(cmd.Context())
			if err != nil {
				return err
			}
			if remote == nil {
				fmt.Println("Local data is up to date. Use --force to re-download.")
				return nil
			}
		}

		localDir, err := bridge.DownloadSharedData(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Sync complete: %s\n", localDir)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&forceSync, "force", false, "Force download even if local data is up to date")
	rootCmd.AddCommand(syncCmd)
}
