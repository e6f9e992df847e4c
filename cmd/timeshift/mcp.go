package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvandessel/timeshift/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run timeshift as an MCP (Model Context Protocol) server",
		Long: `Start an MCP server that exposes timeshift over stdio:

  • timeshift_shift_text        - Shift the dates in a piece of text
  • timeshift_list_variants     - List generated variants
  • timeshift_validate_variant  - Validate a variant
  • timeshift_generate_variant  - Generate a variant

Example client config:

  {
    "mcpServers": {
      "timeshift": {
        "command": "timeshift",
        "args": ["mcp-server"],
        "cwd": "${workspaceFolder}"
      }
    }
  }
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			configPath, _ := cmd.Flags().GetString("config")

			server, err := mcp.NewServer(&mcp.Config{
				Name:       "timeshift",
				Version:    version,
				Root:       root,
				ConfigPath: configPath,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Blocks until the client disconnects or a signal arrives.
			if err := server.Run(ctx); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}

	return cmd
}
