package cmd

import (
	"github.com/spf13/cobra"

	"github.com/orchid-cli/orchid/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for editor-assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP-capable assistant create and track orchid tasks
natively. Configure with:

  {
    "mcpServers": {
      "orchid": { "command": "orchid", "args": ["mcp"] }
    }
  }

Available tools: orchid_list_tasks, orchid_create_task,
orchid_cancel_task, orchid_execute_task, orchid_task_stats,
orchid_list_agents, orchid_recommend_agents`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(); err != nil {
			return err
		}
		sc, err := getSync()
		if err != nil {
			return err
		}
		return mcp.NewServer(sc).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
