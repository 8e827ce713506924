package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/daemon"
	"github.com/Aman-CERP/amansuggest/internal/logging"
	"github.com/Aman-CERP/amansuggest/internal/output"
	"github.com/Aman-CERP/amansuggest/internal/preflight"
)

func newServeCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the suggester daemon",
		Long: `Start the suggester daemon. It runs in the background by default.

The daemon serves the CLI and MCP server over a unix socket and, when
server.http_addr is set, the HTTP API. It watches the config file and
applies changes without a restart.`,
		Example: `  amansuggest serve       # start in the background
  amansuggest serve -f    # run in the foreground, logging to stderr`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if foreground {
				return runForeground(cmd.Context(), cmd, cfg)
			}
			return runBackground(cmd, cfg)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func runForeground(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := output.New(cmd.ErrOrStderr())
	dcfg := daemon.ConfigFrom(cfg)

	if daemon.NewClient(dcfg).IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	results := preflight.New(cfg).RunAll()
	if preflight.HasCriticalFailures(results) {
		preflight.PrintResults(cmd.ErrOrStderr(), results, false)
		return fmt.Errorf("system check failed; see 'amansuggest doctor'")
	}
	for _, r := range results {
		if r.Status == preflight.StatusWarn {
			out.Warningf("%s: %s", r.Name, r.Message)
		}
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logCfg.FilePath = cfg.Server.LogFile
	if debugMode {
		logCfg.Level = "debug"
	}
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	} else {
		out.Warningf("File logging disabled: %v", err)
	}

	out.Statusf("", "Socket: %s", dcfg.SocketPath)
	if dcfg.HTTPAddr != "" {
		out.Statusf("", "HTTP:   http://%s", dcfg.HTTPAddr)
	}
	if logCfg.FilePath != "" {
		out.Statusf("", "Logs:   %s", logCfg.FilePath)
	}
	out.Status("", "Press Ctrl+C to stop")

	d, err := daemon.NewDaemon(cfg, dcfg, daemon.Options{ConfigPath: effectiveConfigPath()})
	if err != nil {
		slog.Error("Failed to create daemon", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	return d.Start(ctx)
}

func runBackground(cmd *cobra.Command, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout())
	client := daemon.NewClient(daemon.ConfigFrom(cfg))

	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "--foreground", "--config", effectiveConfigPath()}
	if debugMode {
		args = append(args, "--debug")
	}
	bg := exec.Command(execPath, args...)
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bg.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice if it dies before answering.
	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()

	for range 50 {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Successf("Daemon started (pid: %d)", bg.Process.Pid)
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long:  `Stop the suggester daemon. Sends SIGTERM and waits up to five seconds before SIGKILL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStop(cmd, daemon.NewPIDFile(cfg.Server.PIDPath))
		},
	}
}

func runStop(cmd *cobra.Command, pidFile *daemon.PIDFile) error {
	out := output.New(cmd.OutOrStdout())

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}
	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	out.Success("Daemon killed")
	return nil
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and suggester status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := daemonClient()
			if err != nil {
				return err
			}
			return runStatus(cmd, client, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, client *daemon.Client, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	var st *daemon.StatusResult
	if client.IsRunning() {
		var err error
		if st, err = client.Status(cmd.Context()); err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
	}

	if jsonOutput {
		if st == nil {
			st = &daemon.StatusResult{}
		}
		return encodeJSON(cmd, st)
	}

	if st == nil {
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'amansuggest serve' to start it")
		return nil
	}

	out.Status("", "Daemon is running")
	out.Statusf("", "PID:         %d", st.PID)
	out.Statusf("", "Uptime:      %s", st.Uptime)
	if st.HTTPAddr != "" {
		out.Statusf("", "HTTP:        http://%s", st.HTTPAddr)
	}
	out.Newline()
	out.Status("", "Suggester")
	out.SuggesterStatus(st.Suggester)
	return nil
}

func encodeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
