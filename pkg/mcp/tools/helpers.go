package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-insights/pkg/middleware"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// userFromContext returns the calling user set by the HTTP layer.
func userFromContext(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", fmt.Errorf("authentication required: missing %s", middleware.UserIDHeader)
	}
	return userID, nil
}

// optionalUUID parses an optional UUID argument. A blank value is nil.
func optionalUUID(req mcp.CallToolRequest, name string) (*uuid.UUID, error) {
	raw := trimString(req.GetString(name, ""))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID", name)
	}
	return &id, nil
}

// jsonResult encodes v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
