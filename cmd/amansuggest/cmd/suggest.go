package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansuggest/internal/daemon"
	"github.com/Aman-CERP/amansuggest/internal/output"
)

func newSuggestCmd() *cobra.Command {
	var (
		params     daemon.SuggestParams
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Complete a partial search term",
		Example: `  amansuggest suggest pars
  amansuggest suggest hand -p backend -q "path:src"
  amansuggest suggest cmd --field path --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := runningClient()
			if err != nil {
				return err
			}
			params.Prefix = args[0]

			res, err := client.Suggest(cmd.Context(), params)
			if err != nil {
				return err
			}
			if jsonOutput {
				return encodeJSON(cmd, res)
			}
			output.New(cmd.OutOrStdout()).Suggestions(params.Prefix, *res)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&params.Projects, "project", "p", nil, "Project to search (repeatable, default all)")
	cmd.Flags().StringVar(&params.Field, "field", "content", "Index field to complete in")
	cmd.Flags().StringVarP(&params.Query, "query", "q", "", "Rest of the search, used to rank co-occurring terms")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSelectCmd() *cobra.Command {
	var params daemon.SelectParams

	cmd := &cobra.Command{
		Use:   "select <project> <term>",
		Short: "Record that a suggestion was picked",
		Long: `Record that a user picked term from project's suggestions. Picked terms
rank higher in later suggestions.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := runningClient()
			if err != nil {
				return err
			}
			params.Project, params.Term = args[0], args[1]
			if err := client.Select(cmd.Context(), params); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Recorded %q in %s", params.Term, params.Project)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Field, "field", "content", "Index field the term belongs to")
	cmd.Flags().IntVarP(&params.Weight, "weight", "w", 1, "How much to boost the term")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [project]",
		Short: "Rebuild suggestion data now",
		Long:  `Rebuild the suggestion data of one project, or of every project when none is named.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := runningClient()
			if err != nil {
				return err
			}
			project := ""
			if len(args) == 1 {
				project = args[0]
			}

			start := time.Now()
			if err := client.Refresh(cmd.Context(), project); err != nil {
				return err
			}
			target := "all projects"
			if project != "" {
				target = project
			}
			output.New(cmd.OutOrStdout()).Successf("Refreshed %s in %s", target, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project>",
		Short: "Drop a project's suggestion data",
		Long: `Drop the suggestion engine and popularity counts of a project. The
project's full-text index and config entry are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := runningClient()
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}
			output.New(cmd.OutOrStdout()).Successf("Deleted suggestion data for %s", args[0])
			return nil
		},
	}
}
