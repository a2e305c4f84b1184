package tools

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// DataSourceToolDeps contains dependencies for the data source tools.
type DataSourceToolDeps struct {
	DataSourceService services.DataSourceService
	Logger            *zap.Logger
}

// dataSourceSummary is what the model sees of a data source. Configs are
// never exposed.
type dataSourceSummary struct {
	ID         uuid.UUID             `json:"id"`
	Name       string                `json:"name"`
	Type       models.DataSourceType `json:"type"`
	IsActive   bool                  `json:"is_active"`
	LastSyncAt *time.Time            `json:"last_sync_at,omitempty"`
}

// RegisterDataSourceTools registers list_data_sources and get_schema.
func RegisterDataSourceTools(s *server.MCPServer, deps *DataSourceToolDeps) {
	registerListDataSourcesTool(s, deps)
	registerGetSchemaTool(s, deps)
}

func registerListDataSourcesTool(s *server.MCPServer, deps *DataSourceToolDeps) {
	tool := mcp.NewTool(
		"list_data_sources",
		mcp.WithDescription("List the user's connected data sources. Use an id from here as data_source_id in ask_data or get_schema."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := userFromContext(ctx)
		if err != nil {
			return nil, err
		}

		sources, err := deps.DataSourceService.List(ctx, userID)
		if err != nil {
			return nil, err
		}

		out := make([]dataSourceSummary, len(sources))
		for i, ds := range sources {
			out[i] = dataSourceSummary{
				ID:         ds.ID,
				Name:       ds.Name,
				Type:       ds.Type,
				IsActive:   ds.IsActive,
				LastSyncAt: ds.LastSyncAt,
			}
		}
		return jsonResult(map[string]any{"data_sources": out})
	})
}

func registerGetSchemaTool(s *server.MCPServer, deps *DataSourceToolDeps) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription(
			"Describe the columns (and tables, for SQL sources) of a data source, with inferred types and sample values. "+
				"Use it to phrase questions in terms of the real column names.",
		),
		mcp.WithString(
			"data_source_id",
			mcp.Required(),
			mcp.Description("Data source UUID from list_data_sources"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := userFromContext(ctx)
		if err != nil {
			return nil, err
		}

		if _, err := req.RequireString("data_source_id"); err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		dsID, err := optionalUUID(req, "data_source_id")
		if err != nil || dsID == nil {
			return NewErrorResult("invalid_parameters", "data_source_id must be a UUID"), nil
		}

		schema, err := deps.DataSourceService.GetSchema(ctx, userID, *dsID)
		if err != nil {
			if res, ok := resultForError(err); ok {
				return res, nil
			}
			return nil, err
		}
		return jsonResult(schema)
	})
}
