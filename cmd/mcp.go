package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/zira/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This allows Claude Code to work the board natively. Configure in
Claude Code with:

  {
    "mcpServers": {
      "zira": { "command": "zira", "args": ["mcp"] }
    }
  }

Tool calls run as the identity configured in identity.credential.

Available tools: zira_list_projects, zira_list_sprints, zira_board,
zira_create_issue, zira_update_issue, zira_move_issue, zira_sprint_status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getService()
		if err != nil {
			return err
		}
		caller, err := getCaller()
		if err != nil {
			return err
		}

		srv := mcp.NewServer(svc, caller)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
