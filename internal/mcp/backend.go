package mcp

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/amansuggest/internal/daemon"
)

// DaemonBackend forwards tool calls to a running daemon.
type DaemonBackend struct {
	client *daemon.Client
}

// NewDaemonBackend wraps client.
func NewDaemonBackend(client *daemon.Client) *DaemonBackend {
	return &DaemonBackend{client: client}
}

// Suggest implements Backend.
func (b *DaemonBackend) Suggest(ctx context.Context, params daemon.SuggestParams) (*daemon.SuggestResult, error) {
	if !b.client.IsRunning() {
		return nil, fmt.Errorf("suggest: %w", ErrDaemonUnavailable)
	}
	return b.client.Suggest(ctx, params)
}

// Status implements Backend.
func (b *DaemonBackend) Status(ctx context.Context) (*daemon.StatusResult, error) {
	if !b.client.IsRunning() {
		return nil, fmt.Errorf("status: %w", ErrDaemonUnavailable)
	}
	return b.client.Status(ctx)
}
