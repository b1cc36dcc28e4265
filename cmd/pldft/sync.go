package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pldft/internal/platform/config"
	"pldft/internal/sanctions/models"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var (
		source string
		file   string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace one source scope with a feed snapshot",
		Long: "Parse a feed snapshot and reconcile it into the store. Rows of the scope " +
			"missing from the snapshot are deleted. With --all every catalog entry that " +
			"has a path is synced concurrently.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == (source != "") {
				return errors.New("use either --source with --file, or --all")
			}
			return root.withApp(cmd, func(a *app) error {
				if all {
					return syncCatalog(cmd, a)
				}
				if file == "" {
					return errors.New("--file is required with --source")
				}
				report, err := syncFile(cmd.Context(), a, source, file)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source scope (UN_CONSOLIDATED, MEX_SANCIONADOS, SAT_69B)")
	cmd.Flags().StringVar(&file, "file", "", "Feed snapshot, optionally gzip-compressed")
	cmd.Flags().BoolVar(&all, "all", false, "Sync every catalog entry with a path")
	return cmd
}

func syncFile(ctx context.Context, a *app, scope, path string) (*models.SyncReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return a.sync.SyncPayload(ctx, scope, raw)
}

func syncCatalog(cmd *cobra.Command, a *app) error {
	if a.cfg.Sources.Catalog == "" {
		return errors.New("--all needs sources.catalog")
	}
	catalog, err := config.LoadCatalog(a.cfg.Sources.Catalog)
	if err != nil {
		return err
	}
	base := filepath.Dir(a.cfg.Sources.Catalog)

	var (
		mu      sync.Mutex
		reports = make([]models.SyncReport, 0, len(catalog.Sources))
	)
	// Scopes are independent: one failing feed must not cancel the others.
	var g errgroup.Group
	ctx := cmd.Context()
	for _, entry := range catalog.Sources {
		if entry.Path == "" {
			a.logger.Info("catalog entry has no path, skipping", "source", entry.Scope)
			continue
		}
		path := entry.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		g.Go(func() error {
			report, err := syncFile(ctx, a, entry.Scope, path)
			if err != nil {
				a.logger.Error("catalog sync failed", "source", entry.Scope, "error", err)
				return fmt.Errorf("%s: %w", entry.Scope, err)
			}
			mu.Lock()
			reports = append(reports, *report)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	if werr := writeJSON(cmd.OutOrStdout(), reports); werr != nil && err == nil {
		err = werr
	}
	return err
}
