package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/output"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage the projects in the config file",
		Long: `Add, remove and list projects. Changes are written to the config file
(the previous version is kept as a backup) and a running daemon applies
them on its own.`,
	}

	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectRemoveCmd())
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if !cfg.ProjectsEnabled {
				out.Status("", "Projects are disabled; a single index is used")
				return nil
			}
			if len(cfg.Projects) == 0 {
				out.Status("", "No projects configured")
				return nil
			}

			names := make([]string, 0, len(cfg.Projects))
			for name := range cfg.Projects {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				line := fmt.Sprintf("%-20s %s", name, cfg.IndexDir(name))
				if !cfg.Projects[name].IsIndexed() {
					line += "  (not indexed)"
				}
				out.Status("", line)
			}
			return nil
		},
	}
}

func newProjectAddCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProjects(cmd, func(cfg *config.Config) error {
				name := args[0]
				if cfg.HasProject(name) {
					return errors.ValidationError(fmt.Sprintf("project %q already exists", name), nil)
				}
				if cfg.Projects == nil {
					cfg.Projects = map[string]config.Project{}
				}
				cfg.Projects[name] = config.Project{Path: path}
				return nil
			}, "Added project %s", args[0])
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Index directory relative to <data_root>/index (default the name)")
	return cmd
}

func newProjectRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a project from the config",
		Long:  `Remove a project. Its index files stay on disk.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editProjects(cmd, func(cfg *config.Config) error {
				if !cfg.HasProject(args[0]) {
					return errors.UnknownProjectError(args[0])
				}
				delete(cfg.Projects, args[0])
				return nil
			}, "Removed project %s", args[0])
		},
	}
}

func editProjects(cmd *cobra.Command, edit func(*config.Config) error, done string, args ...any) error {
	path := effectiveConfigPath()
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := edit(cfg); err != nil {
		return err
	}
	if err := config.SaveWithBackup(cfg, path); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf(done, args...)
	if !cfg.ProjectsEnabled {
		out.Warning("projects_enabled is false; the project is ignored until it is turned on")
	}
	return nil
}
