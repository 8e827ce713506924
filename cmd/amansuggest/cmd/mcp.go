package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansuggest/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the suggester to AI assistants over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout that forwards tool calls to the
suggester daemon. Stdout carries only protocol messages; logs go to stderr.

Tools:
  suggest            complete a partial term
  suggester_status   report readiness and the rebuild schedule`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := daemonClient()
			if err != nil {
				return err
			}
			srv, err := mcp.NewServer(mcp.NewDaemonBackend(client))
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}
}
