package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/basin/internal/server/middleware"
	"github.com/faucetdb/basin/internal/service"
)

// MCPServer wraps the mcp-go server with Basin tool and resource
// registrations so AI agents can browse collections and edit documents.
type MCPServer struct {
	svc    *service.ContentService
	userID string
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all Basin tools and
// resources. userID stamps audit fields when the caller is not
// authenticated, as in stdio mode.
func NewMCPServer(svc *service.ContentService, userID string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		svc:    svc,
		userID: userID,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Basin Content API",
		"1.0.0",
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// Basin as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// Handler returns a Streamable HTTP handler suitable for mounting on the
// main API router.
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

// ServeHTTP starts a standalone Streamable HTTP listener on addr.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

// caller returns the user to stamp into audit fields and checks tenant
// access for HTTP callers. The principal travels on the request context.
func (s *MCPServer) caller(ctx context.Context, tenant string) (string, bool) {
	p := middleware.GetPrincipal(ctx)
	if p == nil {
		return s.userID, true
	}
	return p.UserID, p.CanAccess(tenant)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func destructiveAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
