// Package mcp exposes the suggester as Model Context Protocol tools over
// stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/amansuggest/internal/daemon"
	suggesterrors "github.com/Aman-CERP/amansuggest/internal/errors"
)

// MCP error codes.
const (
	// ErrCodeDaemonUnavailable indicates the daemon could not be reached.
	ErrCodeDaemonUnavailable = -32001

	// ErrCodeUnknownProject indicates a project missing from the configuration.
	ErrCodeUnknownProject = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts backend errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var se *suggesterrors.SuggestError
	if errors.As(err, &se) {
		return mapSuggestError(se)
	}

	var rpcErr *daemon.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case daemon.ErrCodeUnknownProject:
			return &MCPError{Code: ErrCodeUnknownProject, Message: rpcErr.Message}
		case daemon.ErrCodeInvalidParams:
			return &MCPError{Code: ErrCodeInvalidParams, Message: rpcErr.Message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: rpcErr.Message}
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrDaemonUnavailable):
		return &MCPError{
			Code:    ErrCodeDaemonUnavailable,
			Message: "Suggester daemon is not running. Start it with 'amansuggest serve'.",
		}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// ErrDaemonUnavailable is returned by backends that cannot reach the daemon.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapSuggestError(se *suggesterrors.SuggestError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case suggesterrors.ErrCodeUnknownProject:
		return &MCPError{Code: ErrCodeUnknownProject, Message: message}
	case suggesterrors.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
