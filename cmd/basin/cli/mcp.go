package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/basin/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
		userID    string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol server exposing Basin content as tools.

With the stdio transport an MCP client launches Basin as a subprocess, for example
in its configuration:

  {"command": "basin", "args": ["mcp"]}

The http transport serves Streamable HTTP on its own port without authentication;
use 'basin serve --mcp' to mount it behind the API authentication instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("user") {
				cfg.MCP.UserID = userID
			}

			// stdout carries the protocol in stdio mode.
			logger := newLogger(cfg.Logging, os.Stderr, false)
			conn, svc, err := openContent(cfg, logger)
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			mcpSrv := mcp.NewMCPServer(svc, cfg.MCP.UserID, logger)
			switch transport {
			case "stdio":
				return mcpSrv.ServeStdio()
			case "http":
				return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
			default:
				return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "Listen port for the http transport")
	cmd.Flags().StringVar(&userID, "user", "", "User id stamped into audit fields (default mcp.user_id)")

	return cmd
}
