package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/daemon"
	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/indexer"
	"github.com/Aman-CERP/amansuggest/internal/output"
	"github.com/Aman-CERP/amansuggest/internal/store"
)

func newIndexCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index <project> <dir>",
		Short: "Index a source tree into a project",
		Long: `Write the files under dir into project's full-text index. Files gone
from dir are removed from the index.

When the daemon is running it does the indexing and rebuilds the project's
suggestions right away. Otherwise the index is written directly and picked
up by the daemon's next start.

With projects disabled the project argument is ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := daemonClient()
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("invalid directory: %w", err)
			}

			out := output.New(cmd.OutOrStdout())
			var stats indexer.Stats
			if client.IsRunning() {
				res, err := client.Index(cmd.Context(), daemon.IndexParams{Project: args[0], Path: dir})
				if err != nil {
					return err
				}
				stats = *res
			} else {
				out.Status("", "Daemon is not running, indexing directly")
				if stats, err = indexLocal(cmd.Context(), cfg, args[0], dir); err != nil {
					return err
				}
			}

			if jsonOutput {
				return encodeJSON(cmd, stats)
			}
			out.Successf("Indexed %d files, removed %d (%s)",
				stats.Indexed, stats.Removed, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func indexLocal(ctx context.Context, cfg *config.Config, project, dir string) (indexer.Stats, error) {
	if !cfg.ProjectsEnabled {
		project = ""
	} else if !cfg.HasProject(project) {
		return indexer.Stats{}, errors.UnknownProjectError(project).
			WithSuggestion("Run 'amansuggest project add " + project + "' first")
	}

	indexes := store.NewIndexSet(cfg.IndexDir)
	defer func() { _ = indexes.Close() }()

	return indexer.New(indexes, indexer.DefaultOptions()).Index(ctx, project, dir)
}
