package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var revalidateCmd = &cobra.Command{
	Use:   "revalidate",
	Short: "Re-run classification over the master store",
	Long:  "Re-applies the current rule tables to every stored record and persists the ones whose labels changed. Use after editing the rules file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		changed, err := p.Revalidate(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "revalidated: %d records changed\n", changed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revalidateCmd)
}
