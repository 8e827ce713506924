// Package cmd provides the CLI commands for amansuggest.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/daemon"
	"github.com/Aman-CERP/amansuggest/internal/logging"
	"github.com/Aman-CERP/amansuggest/internal/profiling"
	"github.com/Aman-CERP/amansuggest/pkg/version"
)

var (
	configPath  string
	debugMode   bool
	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the amansuggest CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amansuggest",
		Short: "Autocomplete for source-code search",
		Long: `amansuggest completes partial search terms from the full-text index of
your source code, ranked by how often they occur and how often users
picked them.

A background daemon keeps the suggestion engines warm and rebuilds them
on a schedule. The CLI, the HTTP API and the MCP server all talk to it.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: startProfilingAndLogging,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return stopProfiling()
		},
	}

	cmd.SetVersionTemplate("amansuggest version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default "+config.GetUserConfigPath()+")")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log debug output to stderr")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newSelectCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(*cobra.Command, []string) error {
	level := "warn"
	if debugMode {
		level = "debug"
	}
	logging.SetupStderr(level)

	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profile = s
	return nil
}

func stopProfiling() error {
	if profile == nil {
		return nil
	}
	err := profile.Stop()
	profile = nil
	return err
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// effectiveConfigPath is the file the daemon watches.
func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GetUserConfigPath()
}

// daemonClient loads the config and returns a client for its socket.
func daemonClient() (*config.Config, *daemon.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, daemon.NewClient(daemon.ConfigFrom(cfg)), nil
}

// runningClient is daemonClient that fails when no daemon answers.
func runningClient() (*config.Config, *daemon.Client, error) {
	cfg, client, err := daemonClient()
	if err != nil {
		return nil, nil, err
	}
	if !client.IsRunning() {
		return nil, nil, fmt.Errorf("daemon is not running; start it with 'amansuggest serve'")
	}
	return cfg, client, nil
}
