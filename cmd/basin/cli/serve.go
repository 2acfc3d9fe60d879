package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/basin/internal/config"
	"github.com/faucetdb/basin/internal/mcp"
	"github.com/faucetdb/basin/internal/server"
)

const banner = `
 ___   _   ___ ___ _  _
| _ ) /_\ / __|_ _| \| |
| _ \/ _ \\__ \| || .' |
|___/_/ \_\___/___|_|\_|
`

func newServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		dev     bool
		withMCP bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Basin API server",
		Long:  "Start the HTTP server that exposes the content API for every tenant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("mcp") {
				cfg.MCP.Enabled = withMCP
			}
			if dev {
				cfg.Server.CORS.Origins = []string{"*"}
			}
			return runServe(cfg, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging, CORS *)")
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "Mount the MCP streamable HTTP transport at /mcp")

	return cmd
}

func runServe(cfg *config.YAMLConfig, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(cfg.Logging, os.Stderr, dev)

	srvCfg, err := cfg.ServerSettings()
	if err != nil {
		return err
	}

	conn, svc, err := openContent(cfg, logger)
	if err != nil {
		return err
	}

	authSvc := newAuthService(cfg, logger)
	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("no API keys configured - run: basin key generate")
	}

	var opts []server.Option
	if cfg.MCP.Enabled {
		opts = append(opts, server.WithMCP(mcp.NewMCPServer(svc, cfg.MCP.UserID, logger).Handler()))
	}
	srv := server.New(srvCfg, conn, svc, authSvc, logger, opts...)

	base := fmt.Sprintf("http://%s:%d", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Basin %s\n", versionString())
	fmt.Printf("→ Listening on %s\n", base)
	fmt.Printf("→ Content API: %s/api/v1/{tenant}\n", base)
	fmt.Printf("→ Health:      %s/healthz\n", base)
	if cfg.MCP.Enabled {
		fmt.Printf("→ MCP:         %s/mcp\n", base)
	}
	fmt.Printf("→ Store:       %s\n", conn.DriverName())
	fmt.Println()

	return srv.ListenAndServe()
}
