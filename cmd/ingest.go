package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cro-report/jobs-cli/internal/model"
)

var (
	ingestCSV  string
	ingestDate string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest one weekly scrape export",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		date, err := time.Parse(model.DateFormat, ingestDate)
		if err != nil {
			return eris.Wrapf(err, "parse --date %q", ingestDate)
		}

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := p.Run(ctx, ingestCSV, date)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSV, "csv", "", "scrape export CSV path (required)")
	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "snapshot date, YYYY-MM-DD (required)")
	_ = ingestCmd.MarkFlagRequired("csv")
	_ = ingestCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(ingestCmd)
}
