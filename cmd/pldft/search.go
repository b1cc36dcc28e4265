package main

import (
	"strings"

	"github.com/spf13/cobra"

	"pldft/internal/sanctions/models"
)

// searchResult is the screening output row.
type searchResult struct {
	ID              int64        `json:"id"`
	EntityName      string       `json:"entity_name"`
	ReferenceNumber string       `json:"reference_number"`
	Program         string       `json:"program"`
	Source          string       `json:"source"`
	Stage           models.Stage `json:"stage"`
	Score           float64      `json:"score,omitempty"`
}

type searchOutput struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
	Summary string         `json:"summary,omitempty"`
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		limit     int
		summarize bool
	)
	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Screen a name with exact, fuzzy and vector matching",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return root.withApp(cmd, func(a *app) error {
				matches, err := a.search.Search(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				out := searchOutput{Query: query, Results: make([]searchResult, 0, len(matches))}
				for _, m := range matches {
					out.Results = append(out.Results, searchResult{
						ID:              m.Record.ID,
						EntityName:      m.Record.EntityName,
						ReferenceNumber: m.Record.ReferenceNumber,
						Program:         m.Record.Program,
						Source:          m.Record.Source,
						Stage:           m.Stage,
						Score:           m.Score,
					})
				}
				if summarize {
					if out.Summary, err = a.summary.Summarize(cmd.Context(), query, matches); err != nil {
						a.logger.Warn("summary unavailable", "error", err)
					}
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum direct matches (default from search.default_limit)")
	cmd.Flags().BoolVar(&summarize, "summary", false, "Add a narrative summary of the results")
	return cmd
}
