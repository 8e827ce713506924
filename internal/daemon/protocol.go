package daemon

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/indexer"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing        = "ping"
	MethodStatus      = "status"
	MethodSuggest     = "suggest"
	MethodSearchEvent = "search_event"
	MethodSelect      = "select"
	MethodRefresh     = "refresh"
	MethodDelete      = "delete"
	MethodIndex       = "index"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	ErrCodeUnknownProject = -32001
	ErrCodeIndexFailed    = -32002
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse creates a successful response. A result that cannot
// be encoded becomes an internal error.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{JSONRPC: "2.0", Result: data, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// SuggestParams are the parameters for the suggest method.
type SuggestParams struct {
	Projects []string `json:"projects,omitempty"`
	// Field defaults to "content".
	Field  string `json:"field,omitempty"`
	Prefix string `json:"prefix"`
	// Query is the rest of the search, e.g. "path:src handler".
	Query string `json:"q,omitempty"`
}

// Validate checks that required fields are present.
func (p *SuggestParams) Validate() error {
	if p.Field == "" {
		p.Field = "content"
	}
	if strings.TrimSpace(p.Prefix) == "" {
		return fmt.Errorf("prefix is required")
	}
	return nil
}

// SuggestResult is the reply to suggest.
type SuggestResult = api.Reply

// SearchEventParams report an executed search.
type SearchEventParams struct {
	Projects []string `json:"projects,omitempty"`
	Query    string   `json:"q"`
}

// SelectParams report a picked suggestion.
type SelectParams struct {
	Project string `json:"project"`
	Field   string `json:"field,omitempty"`
	Term    string `json:"term"`
	// Weight defaults to 1.
	Weight int `json:"weight,omitempty"`
}

// Validate checks that required fields are present.
func (p *SelectParams) Validate() error {
	if strings.TrimSpace(p.Term) == "" {
		return fmt.Errorf("term is required")
	}
	if p.Weight == 0 {
		p.Weight = 1
	}
	return nil
}

// SelectedTerm returns the picked term.
func (p SelectParams) SelectedTerm() suggest.Term {
	return suggest.Term{Field: p.Field, Text: p.Term}
}

// RefreshParams select what to rebuild. An empty project rebuilds
// everything.
type RefreshParams struct {
	Project string `json:"project,omitempty"`
}

// DeleteParams name the project to drop.
type DeleteParams struct {
	Project string `json:"project"`
}

// Validate checks that required fields are present.
func (p *DeleteParams) Validate() error {
	if p.Project == "" {
		return fmt.Errorf("project is required")
	}
	return nil
}

// IndexParams ask the daemon to index a source tree into a project.
type IndexParams struct {
	Project string `json:"project"`
	Path    string `json:"path"`
}

// Validate checks that required fields are present.
func (p *IndexParams) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// IndexResult is the reply to index.
type IndexResult = indexer.Stats

// StatusResult contains daemon status information.
type StatusResult struct {
	Running   bool           `json:"running"`
	PID       int            `json:"pid"`
	Uptime    string         `json:"uptime"`
	HTTPAddr  string         `json:"http_addr,omitempty"`
	Suggester suggest.Status `json:"suggester"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}

// OKResult acknowledges methods without a payload.
type OKResult struct {
	OK bool `json:"ok"`
}
