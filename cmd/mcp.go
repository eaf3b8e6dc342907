package cmd

import (
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	scrummcp "github.com/joescharf/scrum/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Tools act as the user in mcp.user (or --as). Configure a client with:

  {
    "mcpServers": {
      "scrum": { "command": "scrum", "args": ["mcp", "--as", "alice"] }
    }
  }

Available tools: scrum_list_projects, scrum_project_status,
scrum_check_permission, scrum_item_action, scrum_burndown, scrum_board`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	user := viper.GetString("mcp.user")
	if cmd.Flags().Changed("as") || user == "" {
		user = viper.GetString("user")
	}
	if user == "" {
		return fmt.Errorf("no MCP user: set mcp.user in config or pass --as")
	}

	e, err := getEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	logger.Debug("mcp server starting", "user", user)
	return scrummcp.NewServer(e, user).ServeStdio(ctx)
}
