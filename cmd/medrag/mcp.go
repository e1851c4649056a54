package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/calque-ai/medrag/pkg/app"
	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/transport/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask_medical_question tool over MCP stdio",
	Long: `mcp runs a Model Context Protocol server on stdin and stdout. Logs go to
stderr so they never corrupt the protocol stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			calque.LogInfo(ctx, "mcp server starting", "tool", mcpserver.ToolName)
			return mcpserver.ServeStdio(ctx, mcpserver.New(a, app.Version))
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
