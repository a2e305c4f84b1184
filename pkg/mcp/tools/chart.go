package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-insights/pkg/chart"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

type suggestChartResult struct {
	ChartType string            `json:"chart_type"`
	Shape     string            `json:"shape"`
	Summary   string            `json:"summary"`
	Chart     *models.ChartData `json:"chart"`
}

type suggestChartArgs struct {
	Rows      []models.Record `json:"rows"`
	Columns   []string        `json:"columns"`
	ChartType string          `json:"chart_type"`
}

// RegisterChartTools registers suggest_chart, which shapes arbitrary rows
// into chart data. It needs no data source.
func RegisterChartTools(s *server.MCPServer) {
	tool := mcp.NewTool(
		"suggest_chart",
		mcp.WithDescription(
			"Suggest a chart for tabular rows and return renderer-ready chart data (labels, datasets, metrics). "+
				"Column types are inferred from the values.",
		),
		mcp.WithArray(
			"rows",
			mcp.Required(),
			mcp.Description("Rows as JSON objects keyed by column name"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithArray(
			"columns",
			mcp.Description("Optional column order; defaults to the keys of the first row"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString(
			"chart_type",
			mcp.Description("Optional chart type to force: bar, line, area, pie, doughnut or scatter"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args suggestChartArgs
		raw, err := json.Marshal(req.GetArguments())
		if err == nil {
			err = json.Unmarshal(raw, &args)
		}
		if err != nil {
			return NewErrorResult("invalid_parameters", "rows must be an array of objects and columns an array of strings"), nil
		}
		if len(args.Rows) == 0 {
			return NewErrorResult("invalid_parameters", "rows must not be empty"), nil
		}

		shape := chart.Detect(args.Rows, args.Columns)
		data, err := chart.Transform(args.Rows, args.Columns, trimString(args.ChartType))
		if err != nil {
			return NewErrorResult("transformation_error", err.Error()), nil
		}

		chartType := data.Type
		if chartType == shape {
			chartType = chart.SuggestChartType(data)
		}
		return jsonResult(suggestChartResult{
			ChartType: chartType,
			Shape:     shape,
			Summary:   chart.Summary(data),
			Chart:     data,
		})
	})
}
