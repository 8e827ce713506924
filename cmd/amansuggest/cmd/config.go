package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amansuggest/configs"
	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Manage the configuration file.

Precedence (lowest to highest):
  1. Built-in defaults
  2. Config file (~/.config/amansuggest/config.yaml or --config)
  3. Environment variables (AMANSUGGEST_*)`,
		Example: `  amansuggest config init
  amansuggest config show --json
  amansuggest config validate`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file from a template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path := effectiveConfigPath()

			if _, err := os.Stat(path); err == nil {
				if !force {
					out.Warning("Configuration already exists")
					out.Statusf("📁", "Location: %s", path)
					out.Status("💡", "Use --force to replace it (the old file is backed up)")
					return nil
				}
				backup, err := config.Backup(path)
				if err != nil {
					return err
				}
				out.Statusf("💾", "Backup: %s", backup)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			out.Success("Created configuration")
			out.Statusf("📁", "Location: %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  `Show the configuration after defaults, the file and environment variables are merged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return encodeJSON(cmd, struct {
					DataRoot        string         `json:"data_root"`
					ProjectsEnabled bool           `json:"projects_enabled"`
					Projects        []string       `json:"projects"`
					Suggester       api.ConfigView `json:"suggester"`
				}{cfg.DataRoot, cfg.ProjectsEnabled, cfg.IndexedProjects(), api.NewConfigView(&cfg.Suggester)})
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			out := output.New(cmd.OutOrStdout())
			out.Statusf("📁", "Source: %s", effectiveConfigPath())
			out.Code(string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file",
		Long:  `Check a configuration file, including its rebuild schedule, without touching the daemon.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := effectiveConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("%s is valid", path)
			if cron := cfg.Suggester.Cron(); cron != "" {
				out.Statusf("", "Rebuild schedule: %s", cron)
			} else {
				out.Status("", "Rebuild schedule: off")
			}
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), effectiveConfigPath())
			return err
		},
	}
}
