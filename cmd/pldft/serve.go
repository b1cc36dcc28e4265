package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pldft/internal/platform/httpserver"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose health and metrics endpoints and run periodic maintenance",
		Long: "Serve /healthz, /readyz and /metrics on ops.addr. With --maintenance-interval " +
			"the process also re-runs clustering and, when an AI provider is configured, " +
			"the embedding backfill on that interval.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				srv := httpserver.New(a.cfg.Ops.Addr, httpserver.NewOpsRouter(a.registry, a.checks))

				errCh := make(chan error, 1)
				go func() {
					a.logger.Info("ops server listening", "addr", a.cfg.Ops.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
				}()
				if interval > 0 {
					go a.maintain(ctx, interval)
				}

				select {
				case <-ctx.Done():
				case err := <-errCh:
					return err
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "maintenance-interval", 0, "Run clustering and backfill on this interval (0 disables)")
	return cmd
}

func (a *app) maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := a.resolver.ClusterDeterministic(ctx); err != nil {
			a.logger.Error("scheduled clustering failed", "error", err)
		}
		if a.embedder == nil {
			continue
		}
		b, err := a.newBackfiller()
		if err != nil {
			a.logger.Error("backfill setup failed", "error", err)
			continue
		}
		if _, err := b.Run(ctx, a.cfg.Backfill.BatchSize); err != nil {
			a.logger.Error("scheduled backfill failed", "error", err)
		}
		b.Release()
	}
}
