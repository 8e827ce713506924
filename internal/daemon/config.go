// Package daemon runs the suggester as a long-lived process. It serves a
// JSON-RPC API on a Unix socket for the CLI, the HTTP API and the
// configuration watcher, and owns the process-wide resources (indexes,
// suggester storage, PID file).
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/amansuggest/internal/config"
)

// Config holds the daemon's process settings.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	PIDPath string

	// HTTPAddr is the listen address of the HTTP API; empty disables it.
	HTTPAddr string

	// Timeout is the maximum duration for client-daemon communication.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns the daemon settings of a default configuration.
func DefaultConfig() Config {
	return ConfigFrom(config.NewConfig())
}

// ConfigFrom takes the server section of cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		SocketPath:          cfg.Server.SocketPath,
		PIDPath:             cfg.Server.PIDPath,
		HTTPAddr:            cfg.Server.HTTPAddr,
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
