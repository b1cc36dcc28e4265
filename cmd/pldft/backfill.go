package main

import (
	"github.com/spf13/cobra"
)

func newBackfillCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed records that have no embedding yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(a *app) error {
				b, err := a.newBackfiller()
				if err != nil {
					return err
				}
				defer b.Release()
				if !cmd.Flags().Changed("limit") {
					limit = a.cfg.Backfill.BatchSize
				}
				report, err := b.Run(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Records to embed, 0 for all (default from backfill.batch_size)")
	return cmd
}
