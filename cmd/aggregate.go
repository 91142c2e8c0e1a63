package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cro-report/jobs-cli/internal/model"
)

var aggregateDate string

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute compensation aggregates for a snapshot",
	Long:  "Derives lifecycle states, recomputes bucketed compensation statistics and headline market stats for the given snapshot (the latest when --date is omitted), and persists the buckets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var date time.Time
		if aggregateDate != "" {
			var err error
			date, err = time.Parse(model.DateFormat, aggregateDate)
			if err != nil {
				return eris.Wrapf(err, "parse --date %q", aggregateDate)
			}
		}

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := p.Aggregate(ctx, date)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateDate, "date", "", "snapshot date, YYYY-MM-DD (default latest)")
	rootCmd.AddCommand(aggregateCmd)
}
