package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/daemon"
	"github.com/Aman-CERP/amansuggest/pkg/version"
)

// Backend answers tool calls. *daemon.Client satisfies it.
type Backend interface {
	Suggest(ctx context.Context, params daemon.SuggestParams) (*daemon.SuggestResult, error)
	Status(ctx context.Context) (*daemon.StatusResult, error)
}

// Server is the MCP server. It bridges AI clients to the suggester daemon.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *slog.Logger
}

// NewServer creates a new MCP server.
func NewServer(backend Backend) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	s := &Server{
		backend: backend,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "amansuggest",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "suggest",
		Description: "Complete a partial identifier or word from the indexed source code. " +
			"Returns the most frequent matching terms, boosted by how often users picked them. " +
			"Pass the rest of the search as query to prefer terms that appear alongside it.",
	}, s.suggestHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "suggester_status",
		Description: "Report whether the suggester is ready, how many projects it covers and when it rebuilds next.",
	}, s.statusHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 2))
}

func (s *Server) suggestHandler(ctx context.Context, _ *mcp.CallToolRequest, input SuggestInput) (
	*mcp.CallToolResult,
	SuggestOutput,
	error,
) {
	if strings.TrimSpace(input.Prefix) == "" {
		return nil, SuggestOutput{}, NewInvalidParamsError("prefix parameter is required")
	}

	res, err := s.backend.Suggest(ctx, daemon.SuggestParams{
		Projects: input.Projects,
		Field:    input.Field,
		Prefix:   input.Prefix,
		Query:    input.Query,
	})
	if err != nil {
		return nil, SuggestOutput{}, MapError(err)
	}

	out := SuggestOutput{Suggestions: res.Suggestions}
	if out.Suggestions == nil {
		out.Suggestions = []api.Suggestion{}
	}
	return textResult(FormatSuggestions(input.Prefix, out.Suggestions)), out, nil
}

func (s *Server) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	st, err := s.backend.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}
	return textResult(FormatStatus(st)), newStatusOutput(st), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Serve runs the server over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// Run serves transport; tests use in-memory transports.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}
