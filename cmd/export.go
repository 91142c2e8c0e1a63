package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cro-report/jobs-cli/internal/export"
)

var (
	exportDir  string
	exportXLSX bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the master store and published aggregates",
	Long:  "Writes jobs.csv (with lifecycle states and substitute suggestions), changelog.csv, aggregates.csv and market_stats.json for the latest snapshot. --xlsx adds a compensation workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return eris.Wrapf(err, "create export dir %s", exportDir)
		}

		records, states, err := p.DeriveLifecycle(ctx)
		if err != nil {
			return err
		}
		subs := p.Substitutes(records, states)

		if err := export.WriteJobsCSV(filepath.Join(exportDir, "jobs.csv"), records, states, subs); err != nil {
			return err
		}

		entries, err := st.Changelog(ctx, 0)
		if err != nil {
			return err
		}
		if err := export.WriteChangelogCSV(filepath.Join(exportDir, "changelog.csv"), entries); err != nil {
			return err
		}

		agg, err := p.Aggregate(ctx, time.Time{})
		if err != nil {
			return err
		}
		if err := export.WriteAggregatesCSV(filepath.Join(exportDir, "aggregates.csv"), agg.Buckets); err != nil {
			return err
		}
		stats, err := st.ListMarketStats(ctx)
		if err != nil {
			return err
		}
		if err := export.WriteMarketStatsJSON(filepath.Join(exportDir, "market_stats.json"), stats); err != nil {
			return err
		}
		if exportXLSX {
			if err := export.WriteAggregatesXLSX(filepath.Join(exportDir, "compensation.xlsx"), agg.Buckets, agg.Stats); err != nil {
				return err
			}
		}

		zap.L().Info("export: wrote artifacts",
			zap.String("dir", exportDir),
			zap.Int("jobs", len(records)),
			zap.Int("changelog", len(entries)),
			zap.Int("buckets", len(agg.Buckets)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "out", "output directory")
	exportCmd.Flags().BoolVar(&exportXLSX, "xlsx", false, "also write a compensation workbook")
	rootCmd.AddCommand(exportCmd)
}
