package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// WithTimeout returns a copy of c with a different exchange timeout. Index
// requests use it since they may run for minutes.
func (c *Client) WithTimeout(d time.Duration) *Client {
	return &Client{socketPath: c.socketPath, timeout: d}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	return c.call(ctx, MethodPing, nil, &res)
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var st StatusResult
	if err := c.call(ctx, MethodStatus, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Suggest asks the daemon for completions.
func (c *Client) Suggest(ctx context.Context, params SuggestParams) (*SuggestResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res SuggestResult
	if err := c.call(ctx, MethodSuggest, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchEvent reports an executed search.
func (c *Client) SearchEvent(ctx context.Context, params SearchEventParams) error {
	return c.call(ctx, MethodSearchEvent, params, &OKResult{})
}

// Select reports a picked suggestion.
func (c *Client) Select(ctx context.Context, params SelectParams) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return c.call(ctx, MethodSelect, params, &OKResult{})
}

// Refresh triggers a rebuild of one project, or of everything when
// project is empty.
func (c *Client) Refresh(ctx context.Context, project string) error {
	return c.call(ctx, MethodRefresh, RefreshParams{Project: project}, &OKResult{})
}

// Delete drops a project's suggester data.
func (c *Client) Delete(ctx context.Context, project string) error {
	params := DeleteParams{Project: project}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return c.call(ctx, MethodDelete, params, &OKResult{})
}

// Index asks the daemon to index path into project.
func (c *Client) Index(ctx context.Context, params IndexParams) (*IndexResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res IndexResult
	if err := c.call(ctx, MethodIndex, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// call performs one request/response exchange and decodes the result into
// out. RPC errors are returned as *Error.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{JSONRPC: "2.0", Method: method, ID: c.nextID()}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = data
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s failed: %w", method, resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
