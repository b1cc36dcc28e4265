package main

import (
	"github.com/spf13/cobra"
)

func newClusterCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cluster",
		Short: "Group records sharing a strong key into identity profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(a *app) error {
				report, err := a.resolver.ClusterDeterministic(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newSuggestCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose cross-source matches for unassigned records",
		Long:  "Suggestions are advisory. No profile is created or changed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(a *app) error {
				suggestions, err := a.resolver.SuggestMatches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), suggestions)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Unassigned records to examine")
	return cmd
}
