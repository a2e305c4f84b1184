package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

func salesResult() *models.Result {
	return &models.Result{
		Columns: []string{"date", "product", "region", "amount"},
		Records: []models.Record{
			{"date": "2023-11-02", "product": "Widget", "region": "North", "amount": 100.0},
			{"date": "2024-01-15", "product": "Gadget", "region": "South", "amount": 250.0},
			{"date": "2023-06-30", "product": "Widget", "region": "South", "amount": 75.0},
			{"date": "2024-03-01", "product": "Widget", "region": "North", "amount": 125.0},
			{"date": "2022-12-31", "product": "Gizmo", "region": "East", "amount": "n/a"},
		},
	}
}

func salesSchema() *models.Schema {
	return &models.Schema{Columns: []models.SchemaColumn{
		{Name: "date", Type: models.ColumnDate},
		{Name: "product", Type: models.ColumnString},
		{Name: "region", Type: models.ColumnString},
		{Name: "amount", Type: models.ColumnNumber},
	}}
}

func TestApply_YearEqualsFallsBackToDateColumn(t *testing.T) {
	q := models.StructuredQuery{
		Filters: []models.Filter{{Column: "year", Operator: models.OpYearEquals, Value: "2024"}},
	}

	got := Apply(salesResult(), q, salesSchema())

	require.Len(t, got.Records, 2)
	assert.Equal(t, "2024-01-15", got.Records[0]["date"])
	assert.Equal(t, "2024-03-01", got.Records[1]["date"])
}

func TestApply_YearEqualsWithoutSchemaDetectsDateColumn(t *testing.T) {
	q := models.StructuredQuery{
		Filters: []models.Filter{{Column: "year", Operator: models.OpYearEquals, Value: 2024}},
	}

	got := Apply(salesResult(), q, nil)
	assert.Len(t, got.Records, 2)
}

func TestApply_GroupByWithAggregations(t *testing.T) {
	q := models.StructuredQuery{
		GroupBy: []string{"product"},
		Aggregations: []models.Aggregation{
			{Function: models.AggSum, Column: "amount"},
			{Function: models.AggCount},
		},
	}

	got := Apply(salesResult(), q, salesSchema())

	assert.Equal(t, []string{"product", "sum_amount", "count"}, got.Columns)
	require.Len(t, got.Records, 3)
	// first-seen order
	assert.Equal(t, "Widget", got.Records[0]["product"])
	assert.Equal(t, 300.0, got.Records[0]["sum_amount"])
	assert.Equal(t, 3, got.Records[0]["count"])
	assert.Equal(t, "Gadget", got.Records[1]["product"])
	// non-numeric values are ignored by sum
	assert.Equal(t, "Gizmo", got.Records[2]["product"])
	assert.Equal(t, 0.0, got.Records[2]["sum_amount"])
}

func TestApply_CompositeGroupKey(t *testing.T) {
	q := models.StructuredQuery{
		GroupBy:      []string{"product", "region"},
		Aggregations: []models.Aggregation{{Function: models.AggCount, Alias: "n"}},
	}

	got := Apply(salesResult(), q, nil)

	require.Len(t, got.Records, 4)
	assert.Equal(t, "Widget", got.Records[0]["product"])
	assert.Equal(t, "North", got.Records[0]["region"])
	assert.Equal(t, 2, got.Records[0]["n"])
}

func TestApply_AggregationWithoutGroupingYieldsOneRow(t *testing.T) {
	q := models.StructuredQuery{
		Aggregations: []models.Aggregation{
			{Function: models.AggAvg, Column: "amount"},
			{Function: models.AggMax, Column: "amount"},
			{Function: models.AggMin, Column: "amount"},
		},
		Select: []string{"date"},
	}

	got := Apply(salesResult(), q, nil)

	require.Len(t, got.Records, 1)
	assert.Equal(t, 137.5, got.Records[0]["avg_amount"])
	assert.Equal(t, 250.0, got.Records[0]["max_amount"])
	assert.Equal(t, 75.0, got.Records[0]["min_amount"])
	// select is skipped after aggregation
	assert.NotContains(t, got.Records[0], "date")
}

func TestApply_OrderLimitSelect(t *testing.T) {
	q := models.StructuredQuery{
		Filters: []models.Filter{{Column: "amount", Operator: models.OpGreaterEqual, Value: 100}},
		OrderBy: &models.OrderBy{Column: "amount", Direction: "desc"},
		Limit:   2,
		Select:  []string{"product", "amount"},
	}

	got := Apply(salesResult(), q, nil)

	assert.Equal(t, []string{"product", "amount"}, got.Columns)
	require.Len(t, got.Records, 2)
	assert.Equal(t, models.Record{"product": "Gadget", "amount": 250.0}, got.Records[0])
	assert.Equal(t, models.Record{"product": "Widget", "amount": 125.0}, got.Records[1])
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	in := salesResult()
	Apply(in, models.StructuredQuery{OrderBy: &models.OrderBy{Column: "amount"}, Limit: 1}, nil)

	assert.Len(t, in.Records, 5)
	assert.Equal(t, "2023-11-02", in.Records[0]["date"])
}

func TestMatches(t *testing.T) {
	r := models.Record{"name": "Acme Corp", "score": 42.0, "joined": "2024-02-10"}

	tests := []struct {
		name   string
		filter models.Filter
		want   bool
	}{
		{"equals ignores case", models.Filter{Column: "name", Operator: models.OpEquals, Value: "acme corp"}, true},
		{"equals numeric string", models.Filter{Column: "score", Operator: models.OpEquals, Value: "42"}, true},
		{"contains", models.Filter{Column: "name", Operator: models.OpContains, Value: "CORP"}, true},
		{"starts with", models.Filter{Column: "name", Operator: models.OpStartsWith, Value: "ac"}, true},
		{"ends with", models.Filter{Column: "name", Operator: models.OpEndsWith, Value: "inc"}, false},
		{"greater than", models.Filter{Column: "score", Operator: models.OpGreaterThan, Value: 41}, true},
		{"less than on text", models.Filter{Column: "name", Operator: models.OpLessThan, Value: 5}, false},
		{"less equal", models.Filter{Column: "score", Operator: models.OpLessEqual, Value: 42}, true},
		{"date after", models.Filter{Column: "joined", Operator: models.OpDateAfter, Value: "2024-02-09"}, true},
		{"date before", models.Filter{Column: "joined", Operator: models.OpDateBefore, Value: "02/10/2024"}, false},
		{"date equals ignores time", models.Filter{Column: "joined", Operator: models.OpDateEquals, Value: "2024-02-10T18:00:00Z"}, true},
		{"unknown operator passes", models.Filter{Column: "name", Operator: "sounds_like", Value: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(r, tt.filter, nil); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestOrder_IsStable(t *testing.T) {
	records := []models.Record{
		{"k": "b", "i": 1},
		{"k": "a", "i": 2},
		{"k": "b", "i": 3},
		{"k": "a", "i": 4},
	}

	got := Order(records, models.OrderBy{Column: "k"})

	var ids []any
	for _, r := range got {
		ids = append(ids, r["i"])
	}
	assert.Equal(t, []any{2, 4, 1, 3}, ids)
}
