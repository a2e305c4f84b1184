package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

const analyzeSystem = `You are a business analyst who turns questions into structured analysis requests.
Respond with JSON only, in this shape:
{"intent": "...", "entities": ["..."], "queryType": "metrics|comparison|trend|distribution|correlation",
 "timeframe": "... or empty", "filters": {}, "suggestedVisualization": "bar|line|pie|scatter|area"}`

const sqlSystem = `You write a single read-only %s SELECT statement answering a business question.
Use only the tables and columns in the schema. Return only the SQL, no explanation.`

const structuredSystem = `You turn a business question into a structured query over a tabular data source.
Use only the columns in the schema. Respond with JSON only, in this shape:
{"select": ["col"], "filters": [{"column": "col", "operator": "equals|contains|greater_than|less_than|greater_equal|less_equal|starts_with|ends_with|date_after|date_before|date_equals|year_equals", "value": "..."}],
 "groupBy": ["col"], "aggregations": [{"function": "sum|avg|count|max|min", "column": "col", "alias": "name"}],
 "orderBy": {"column": "col", "direction": "asc|desc"}, "limit": 100}`

const insightsSystem = `You are a business intelligence expert reading query results.
Respond with JSON only, in this shape:
{"summary": "...", "keyInsights": ["3 to 5 observations"], "recommendations": ["3 to 5 actions"]}`

const titleSystem = `Write a concise title (at most 50 characters) for a business analytics conversation that starts with the user's message. Reply with the title only.`

// insightSampleRows bounds how much of a result is sent for insights.
const insightSampleRows = 50

func dialectName(t models.DataSourceType) string {
	if t == models.DataSourceSQLServer {
		return "SQL Server (T-SQL)"
	}
	return "PostgreSQL"
}

func queryPrompt(text string, analysis *models.Analysis, schema *models.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", text)
	if analysis != nil {
		a, _ := json.Marshal(analysis)
		fmt.Fprintf(&b, "Analysis: %s\n\n", a)
	}
	b.WriteString("Schema:\n")
	b.WriteString(describeSchema(schema))
	return b.String()
}

func describeSchema(schema *models.Schema) string {
	if schema.IsEmpty() {
		return "(no schema available)\n"
	}
	var b strings.Builder
	if len(schema.Tables) > 0 {
		for _, t := range schema.Tables {
			cols := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				cols[i] = c.Name + " " + string(c.Type)
			}
			fmt.Fprintf(&b, "- %s(%s)\n", t.Name, strings.Join(cols, ", "))
		}
		return b.String()
	}
	for _, c := range schema.Columns {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Type)
	}
	return b.String()
}

func insightsPrompt(text string, result *models.Result, analysis *models.Analysis) string {
	rows := []models.Record{}
	total := 0
	if result != nil {
		total = len(result.Records)
		rows = result.Records
		if len(rows) > insightSampleRows {
			rows = rows[:insightSampleRows]
		}
	}
	data, _ := json.Marshal(rows)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", text)
	if analysis != nil {
		fmt.Fprintf(&b, "Query type: %s\n", analysis.QueryType)
	}
	fmt.Fprintf(&b, "Rows returned: %d\nData: %s\n", total, data)
	return b.String()
}
