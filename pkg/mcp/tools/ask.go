package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// maxAskRows bounds the rows returned to the model. The full count is
// reported alongside.
const maxAskRows = 50

// AskToolDeps contains dependencies for the ask_data tool.
type AskToolDeps struct {
	QueryService services.QueryService
	Logger       *zap.Logger
}

type askResult struct {
	QueryID        string                `json:"query_id"`
	Summary        string                `json:"summary"`
	KeyInsights    []string              `json:"key_insights"`
	Recommend      []string              `json:"recommendations"`
	Columns        []string              `json:"columns"`
	Rows           []models.Record       `json:"rows"`
	RowCount       int                   `json:"row_count"`
	Truncated      bool                  `json:"truncated,omitempty"`
	QueryType      models.QueryType      `json:"query_type"`
	GeneratedQuery models.Query          `json:"generated_query"`
	Visualization  *models.Visualization `json:"visualization,omitempty"`
}

// RegisterAskTool registers ask_data, which answers a natural-language
// question against the caller's data sources.
func RegisterAskTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		"ask_data",
		mcp.WithDescription(
			"Answer a natural-language question about the user's data. "+
				"Returns the rows, a summary with key insights, and a suggested visualization. "+
				"Without data_source_id the user's first active data source is used.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. 'sales by region' or 'monthly revenue trend in 2024'"),
		),
		mcp.WithString(
			"data_source_id",
			mcp.Description("Optional data source UUID from list_data_sources"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := userFromContext(ctx)
		if err != nil {
			return nil, err
		}

		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		question = trimString(question)
		if question == "" {
			return NewErrorResult("invalid_parameters", "question must not be empty"), nil
		}
		dsID, err := optionalUUID(req, "data_source_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		result, err := deps.QueryService.Process(ctx, services.ProcessRequest{
			UserID:       userID,
			Query:        question,
			DataSourceID: dsID,
		})
		if err != nil {
			if res, ok := resultForError(err); ok {
				deps.Logger.Debug("ask_data returned an actionable error",
					zap.String("user_id", userID),
					zap.String("error", logging.SanitizeError(err)))
				return res, nil
			}
			return nil, err
		}

		rows := result.Results
		out := askResult{
			QueryID:        result.QueryID,
			Summary:        result.Insights.Summary,
			KeyInsights:    result.Insights.KeyInsights,
			Recommend:      result.Insights.Recommendations,
			Columns:        result.Columns,
			RowCount:       len(rows),
			QueryType:      result.Analysis.QueryType,
			GeneratedQuery: result.GeneratedQuery,
			Visualization:  result.Visualization,
		}
		if len(rows) > maxAskRows {
			rows = rows[:maxAskRows]
			out.Truncated = true
		}
		out.Rows = rows
		return jsonResult(out)
	})
}
