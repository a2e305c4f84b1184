package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	AIEnabled bool   `json:"ai_enabled"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
func RegisterHealthTool(s *server.MCPServer, version string, aiEnabled bool) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and whether AI query generation is enabled"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(healthResult{Status: "ok", Version: version, AIEnabled: aiEnabled})
	})
}
