package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"pldft/internal/platform/config"
	"pldft/internal/platform/logger"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pldft",
		Short:         "Sanctions list reconciliation and screening",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(opts.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (default ./pldft.yaml when present)")

	cmd.AddCommand(
		newSyncCmd(opts),
		newClusterCmd(opts),
		newSuggestCmd(opts),
		newSearchCmd(opts),
		newBackfillCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// withApp wires an app for the duration of run.
func (o *rootOptions) withApp(cmd *cobra.Command, run func(a *app) error) error {
	a, err := newApp(cmd.Context(), o.cfg, o.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return run(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
