package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"unitlens/pkg/mcpserver"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the unit queries as MCP tools over stdio",
		Long: `Serve system_summary, unit_status and unit_logs as Model Context Protocol
tools on stdin/stdout. Logs go to the configured log output, never stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := mcpserver.NewServer(a.inspector(), version, a.log)
			a.log.Info("serving MCP over stdio")
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
