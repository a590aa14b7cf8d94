/*
Copyright © 2026 ソニーレベル <C7kali3@gmail.com>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantfold/rdagent-runner/internal/config"
)

var (
	// Global flags
	logLevel string
	envFile  string

	// Run flags, shared by run and full
	maxIterations int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rdrun",
	Short: "Automated factor mining with Microsoft RD-Agent",
	Long: `rdrun supervises an RD-Agent qlib factor-mining run: it verifies
prerequisites, stages an isolated per-run workspace, launches the agent
inside its conda environment, patches the generated code, and harvests
discovered factors into a normalized document.

Commands:
  sync    Download the scanner's shared data from object storage
  run     Launch one RD-Agent run locally
  upload  Upload discovered factors to object storage
  full    Run all three steps in sequence (sync, run, upload)`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: ./.env)")
}

// setup loads configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	log, err := newLogger(level)
	if err != nil {
		return nil, nil, err
	}

	cfg.LogSummary(log)
	return cfg, log, nil
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	zcfg.DisableStacktrace = true
	return zcfg.Build()
}
