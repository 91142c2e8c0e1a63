package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cro-report/jobs-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "jobs-cli",
	Short: "Executive sales hiring market pipeline",
	Long:  "Ingests weekly job posting scrapes, deduplicates and classifies executive sales roles, tracks posting lifecycle and publishes compensation aggregates.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
