package fallback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/schemacache"
	sqlutil "github.com/ekaya-inc/ekaya-insights/pkg/sql"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		text      string
		queryType models.QueryType
		chart     string
		entities  []string
		timeframe string
	}{
		{"How many customers signed up in 2024?", models.QueryMetrics, models.ChartBar, []string{EntityCustomers}, "2024"},
		{"Sales by region", models.QueryDistribution, models.ChartPie, []string{EntitySales}, ""},
		{"Revenue trend over time", models.QueryTrend, models.ChartLine, []string{EntitySales}, ""},
		{"Monthly product orders", models.QueryTrend, models.ChartLine, []string{EntityProducts}, ""},
		{"Total count of orders by region", models.QueryMetrics, models.ChartBar, []string{}, ""},
		{"Product sales by month", models.QueryDistribution, models.ChartPie, []string{EntitySales, EntityProducts}, ""},
		{"Orders per country", models.QueryDistribution, models.ChartPie, []string{}, ""},
		{"Compare 2023 with 2021", models.QueryMetrics, models.ChartBar, []string{}, "2023"},
		{"show me everything", models.QueryMetrics, models.ChartBar, []string{}, ""},
		{"Subtotal by region", models.QueryDistribution, models.ChartPie, []string{}, ""},
		{"Bypass counting errors", models.QueryMetrics, models.ChartBar, []string{}, ""},
		{"Customer timeline", models.QueryTrend, models.ChartLine, []string{EntityCustomers}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			a := Analyze(tt.text)

			if a.QueryType != tt.queryType {
				t.Errorf("QueryType = %q, want %q", a.QueryType, tt.queryType)
			}
			if a.SuggestedVisualization != tt.chart {
				t.Errorf("SuggestedVisualization = %q, want %q", a.SuggestedVisualization, tt.chart)
			}
			assert.Equal(t, tt.entities, a.Entities)
			assert.Equal(t, tt.timeframe, a.Timeframe)
		})
	}
}

func TestAnalyze_IntentAndFilters(t *testing.T) {
	a := Analyze("How many customers bought products in 2024")
	assert.Equal(t, "Analyze customers and products data for 2024", a.Intent)
	assert.Equal(t, map[string]any{"year": "2024"}, a.Filters)

	a = Analyze("anything at all")
	assert.Equal(t, "Analyze general data", a.Intent)
	assert.Nil(t, a.Filters)
	assert.NotNil(t, a.Entities)
}

func salesColumns() *models.Schema {
	return &models.Schema{Columns: []models.SchemaColumn{
		{Name: "id", Type: models.ColumnNumber},
		{Name: "region", Type: models.ColumnString},
		{Name: "order_date", Type: models.ColumnDate},
		{Name: "amount", Type: models.ColumnNumber},
	}}
}

func TestGenerateQuery_Metrics(t *testing.T) {
	q := GenerateQuery(models.Analysis{QueryType: models.QueryMetrics, Entities: []string{EntitySales}}, salesColumns())

	assert.Empty(t, q.Select)
	assert.Equal(t, []models.Aggregation{
		{Function: models.AggCount},
		{Function: models.AggSum, Column: "amount"},
	}, q.Aggregations)
	assert.Equal(t, DefaultLimit, q.Limit)
}

func TestGenerateQuery_Distribution(t *testing.T) {
	q := GenerateQuery(models.Analysis{QueryType: models.QueryDistribution}, salesColumns())

	assert.Equal(t, []string{"region"}, q.GroupBy)
	assert.Equal(t, []models.Aggregation{{Function: models.AggCount}}, q.Aggregations)
}

func TestGenerateQuery_DistributionWithoutCategories(t *testing.T) {
	schema := &models.Schema{Columns: []models.SchemaColumn{{Name: "n", Type: models.ColumnNumber}}}

	q := GenerateQuery(models.Analysis{QueryType: models.QueryDistribution}, schema)

	assert.Equal(t, []string{"*"}, q.Select)
	assert.Empty(t, q.GroupBy)
	assert.Equal(t, DefaultLimit, q.Limit)
}

func TestGenerateQuery_Trend(t *testing.T) {
	q := GenerateQuery(models.Analysis{QueryType: models.QueryTrend}, salesColumns())

	assert.Equal(t, []string{"order_date"}, q.GroupBy)
	assert.Equal(t, []models.Aggregation{{Function: models.AggSum, Column: "amount"}}, q.Aggregations)
	require.NotNil(t, q.OrderBy)
	assert.Equal(t, "order_date", q.OrderBy.Column)
	assert.Equal(t, "asc", q.OrderBy.Direction)
}

func TestGenerateQuery_YearFilter(t *testing.T) {
	q := GenerateQuery(models.Analysis{QueryType: models.QueryMetrics, Timeframe: "2024"}, salesColumns())
	require.Len(t, q.Filters, 1)
	assert.Equal(t, models.Filter{Column: "order_date", Operator: models.OpYearEquals, Value: 2024}, q.Filters[0])

	q = GenerateQuery(models.Analysis{QueryType: models.QueryMetrics, Timeframe: "2024"}, &models.Schema{})
	require.Len(t, q.Filters, 1)
	assert.Equal(t, "year", q.Filters[0].Column)
}

func TestGenerateQuery_NilSchema(t *testing.T) {
	q := GenerateQuery(models.Analysis{QueryType: models.QueryTrend}, nil)

	assert.Equal(t, []string{"*"}, q.Select)
	assert.Equal(t, DefaultLimit, q.Limit)
}

func TestGenerateSQLQuery_PicksEntityTable(t *testing.T) {
	schema := schemacache.StaticSchema()

	q := GenerateSQLQuery(Analyze("How many customers are there"), schema)
	assert.Equal(t, "customers", q.Table)
	require.NotNil(t, q.Structured)

	q = GenerateSQLQuery(Analyze("sales trend over time"), schema)
	assert.Equal(t, "orders", q.Table)
	assert.Equal(t, []string{"order_date"}, q.Structured.GroupBy)
	summed := q.Structured.Aggregations[0].Column
	assert.NotEmpty(t, summed)
	assert.False(t, strings.HasSuffix(summed, "_id"), "key columns are never summed: %s", summed)

	q = GenerateSQLQuery(Analyze("show me everything"), schema)
	assert.Equal(t, schema.Tables[0].Name, q.Table)
}

func TestGenerateSQLQuery_NoTables(t *testing.T) {
	q := GenerateSQLQuery(models.Analysis{QueryType: models.QueryMetrics}, salesColumns())

	assert.Empty(t, q.Table)
	assert.False(t, q.IsSQL())
}

func TestGenerateSQL(t *testing.T) {
	out, err := GenerateSQL(Analyze("Total sales in 2024"), schemacache.StaticSchema(), sqlutil.DialectPostgres)
	require.NoError(t, err)

	assert.Contains(t, out.SQL, `FROM "orders"`)
	assert.Contains(t, out.SQL, "COUNT(*)")
	assert.True(t, strings.HasSuffix(out.SQL, "LIMIT 1000"), out.SQL)
	assert.Len(t, out.Args, 1)
}

func TestInsights_ZeroRows(t *testing.T) {
	in := Insights("sales in 1999", &models.Result{Columns: []string{"n"}}, nil)

	assert.Equal(t, `Found 0 records for your query: "sales in 1999"`, in.Summary)
	assert.Contains(t, in.KeyInsights, "Total records analyzed: 0")
	assert.Len(t, in.Recommendations, 3)
}

func TestInsights_TotalsAndTop(t *testing.T) {
	result := &models.Result{
		Columns: []string{"region", "amount"},
		Records: []models.Record{
			{"region": "north", "amount": 1200.0},
			{"region": "south", "amount": 300.0},
			{"region": "north", "amount": 500.0},
		},
	}

	in := Insights("sales by region", result, &models.Analysis{Timeframe: "2024"})

	assert.Contains(t, in.KeyInsights, "Total records analyzed: 3")
	assert.Contains(t, in.KeyInsights, "Total amount: 2.0K")
	assert.Contains(t, in.KeyInsights, "Top region: north (1.7K)")
	assert.Contains(t, in.Recommendations, "Compare 2024 with another period")
	assert.NotEmpty(t, in.Summary)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultTitle},
		{"   ", DefaultTitle},
		{"Sales by region", "Sales by region"},
		{"what were our total sales in the north region last year", "what were our total sales in"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := Title(tt.in); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
