package visualization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

func regionResult() *models.Result {
	return &models.Result{
		Columns: []string{"region", "total"},
		Records: []models.Record{
			{"region": "north", "total": "120"},
			{"region": "south", "total": 80.0},
		},
	}
}

func TestGenerateConfig(t *testing.T) {
	rows := []models.Record{{"month": "Jan", "revenue": 10.0, "cost": 4.0}}
	columns := []string{"month", "revenue", "cost"}

	tests := []struct {
		chartType string
		want      models.ChartConfig
	}{
		{models.ChartBar, models.ChartConfig{Responsive: true, XAxisDataKey: "month", YAxisDataKey: "revenue"}},
		{models.ChartLine, models.ChartConfig{Responsive: true, XAxisDataKey: "month", YAxisDataKey: "revenue"}},
		{models.ChartArea, models.ChartConfig{Responsive: true, XAxisDataKey: "month", YAxisDataKey: "revenue"}},
		{models.ChartPie, models.ChartConfig{Responsive: true, DataKey: "value", NameKey: "name"}},
		{models.ChartScatter, models.ChartConfig{Responsive: true, XAxisDataKey: "x", YAxisDataKey: "y"}},
		{"table", models.ChartConfig{Responsive: true}},
	}
	for _, tt := range tests {
		t.Run(tt.chartType, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateConfig(tt.chartType, columns, rows))
		})
	}
}

func TestGenerateConfig_SortedKeysWithoutColumns(t *testing.T) {
	cfg := GenerateConfig(models.ChartBar, nil, []models.Record{{"b": 1.0, "a": "x"}})

	assert.Equal(t, "a", cfg.XAxisDataKey)
	assert.Equal(t, "b", cfg.YAxisDataKey)
}

func TestGenerateConfig_NoRows(t *testing.T) {
	cfg := GenerateConfig(models.ChartBar, []string{"a", "b"}, nil)
	assert.Empty(t, cfg.XAxisDataKey)
}

func TestPrepareData_Pie(t *testing.T) {
	rows := PrepareData(models.ChartPie, regionResult())

	assert.Equal(t, []models.Record{
		{"name": "north", "value": 120.0},
		{"name": "south", "value": 80.0},
	}, rows)
}

func TestPrepareData_BarCoercesNumericStrings(t *testing.T) {
	rows := PrepareData(models.ChartBar, regionResult())

	require.Len(t, rows, 2)
	assert.Equal(t, 120.0, rows[0]["total"])
	assert.Equal(t, "north", rows[0]["region"])
}

func TestPrepareData_Scatter(t *testing.T) {
	result := &models.Result{
		Columns: []string{"height", "weight", "name"},
		Records: []models.Record{{"height": "1.8", "weight": 80.0, "name": "ann"}},
	}

	rows := PrepareData(models.ChartScatter, result)

	require.Len(t, rows, 1)
	assert.Equal(t, 1.8, rows[0]["x"])
	assert.Equal(t, 80.0, rows[0]["y"])
	assert.Equal(t, "ann", rows[0]["name"])
}

func TestPrepareData_SingleColumn(t *testing.T) {
	result := &models.Result{Columns: []string{"n"}, Records: []models.Record{{"n": 1.0}}}

	assert.Empty(t, PrepareData(models.ChartPie, result))
	assert.Empty(t, PrepareData(models.ChartBar, result))
	assert.Equal(t, result.Records, PrepareData("table", result))
}

func TestBuild(t *testing.T) {
	v, err := Build(models.ChartPie, regionResult())
	require.NoError(t, err)

	assert.Equal(t, models.ChartPie, v.Type)
	assert.Equal(t, "value", v.Config.DataKey)
	require.NotNil(t, v.Chart)
	assert.Equal(t, []string{"north", "south"}, v.Chart.Labels)
	assert.Equal(t, "200", v.Chart.Metrics["Total"])
}

func TestBuild_BarConfigUsesResultColumnOrder(t *testing.T) {
	v, err := Build(models.ChartBar, regionResult())
	require.NoError(t, err)

	assert.Equal(t, "region", v.Config.XAxisDataKey)
	assert.Equal(t, "total", v.Config.YAxisDataKey)
}

func TestBuild_EmptyResult(t *testing.T) {
	_, err := Build(models.ChartBar, &models.Result{Columns: []string{"a"}})

	var te *apperrors.TransformationError
	assert.ErrorAs(t, err, &te)
}
