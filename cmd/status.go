package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cro-report/jobs-cli/internal/model"
	"github.com/cro-report/jobs-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counts, lifecycle breakdown and retained snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		status, err := st.Status(ctx)
		if err != nil {
			return err
		}
		snapshots, err := st.ListSnapshots(ctx)
		if err != nil {
			return err
		}

		out := struct {
			*store.Status
			Lifecycle     map[model.LifecycleState]int `json:"lifecycle,omitempty"`
			SnapshotDates []string                     `json:"snapshot_dates"`
			LatestBatch   string                       `json:"latest_batch,omitempty"`
		}{Status: status}
		for _, snap := range snapshots {
			out.SnapshotDates = append(out.SnapshotDates, snap.Date.Format(model.DateFormat))
		}
		if n := len(snapshots); n > 0 {
			out.LatestBatch = snapshots[n-1].CreatedAt.UTC().Format(time.RFC3339)

			_, states, err := p.DeriveLifecycle(ctx)
			if err != nil {
				return err
			}
			out.Lifecycle = make(map[model.LifecycleState]int)
			for _, state := range states {
				out.Lifecycle[state]++
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
