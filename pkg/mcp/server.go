package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// ServerName identifies this server to MCP clients.
const ServerName = "ekaya-insights"

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// ToolDeps are the services the analytics tools call.
type ToolDeps struct {
	QueryService      services.QueryService
	DataSourceService services.DataSourceService
	AIEnabled         bool
}

// NewServer creates a new MCP server instance.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// NewInsightsServer creates the server with every analytics tool registered.
func NewInsightsServer(version string, deps ToolDeps, logger *zap.Logger) *Server {
	s := NewServer(ServerName, version, logger)
	toolLogger := logger.Named("mcp-tools")

	tools.RegisterHealthTool(s.mcp, version, deps.AIEnabled)
	tools.RegisterAskTool(s.mcp, &tools.AskToolDeps{QueryService: deps.QueryService, Logger: toolLogger})
	tools.RegisterDataSourceTools(s.mcp, &tools.DataSourceToolDeps{DataSourceService: deps.DataSourceService, Logger: toolLogger})
	tools.RegisterChartTools(s.mcp)
	return s
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
