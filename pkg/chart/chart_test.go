package chart

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

func salesByProduct() ([]models.Record, []string) {
	return []models.Record{
		{"product": "A", "sales": 10.0},
		{"product": "B", "sales": 30.0},
		{"product": "C", "sales": 20.0},
	}, []string{"product", "sales"}
}

func TestTransform_PieShares(t *testing.T) {
	records, columns := salesByProduct()

	data, err := Transform(records, columns, models.ChartPie)
	require.NoError(t, err)

	assert.Equal(t, models.ChartPie, data.Type)
	assert.Equal(t, []string{"A", "B", "C"}, data.Labels)
	require.Len(t, data.Datasets, 1)
	assert.Equal(t, []float64{10, 30, 20}, data.Datasets[0].Data)
	assert.Equal(t, "60", data.Metrics["Total"])
	assert.Equal(t, "30", data.Metrics["Max"])
	assert.Equal(t, "10", data.Metrics["Min"])

	require.NotNil(t, data.Options)
	assert.Equal(t, "right", data.Options.Legend.Position)
	assert.Equal(t, "B: 30 (50.0%)", data.Options.Tooltips[1])
	assert.Empty(t, data.Options.Cutout)

	ds := data.Datasets[0]
	assert.Equal(t, Palette[:3], ds.BackgroundColor)
	assert.Equal(t, "rgba(102, 126, 234, 1)", ds.BorderColor[0])
	assert.Equal(t, records, data.RawData)
}

func TestTransform_DoughnutCutout(t *testing.T) {
	records, columns := salesByProduct()

	data, err := Transform(records, columns, models.ChartDoughnut)
	require.NoError(t, err)
	assert.Equal(t, "60%", data.Options.Cutout)
}

func TestTransform_TimeSeriesSortedAndTrending(t *testing.T) {
	records := []models.Record{
		{"month": "2024-03-01", "revenue": 300.0},
		{"month": "2024-01-01", "revenue": 100.0},
		{"month": "2024-02-01", "revenue": 200.0},
	}

	data, err := Transform(records, []string{"month", "revenue"}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ChartTimeSeries, data.Type)
	assert.Equal(t, []string{"Jan 2024", "Feb 2024", "Mar 2024"}, data.Labels)
	assert.Equal(t, []float64{100, 200, 300}, data.Datasets[0].Data)
	assert.Equal(t, "increasing", data.Metrics["Trend"])
	assert.Equal(t, "3", data.Metrics["Data Points"])
	assert.Equal(t, "600", data.Metrics["Total"])

	ds := data.Datasets[0]
	assert.True(t, ds.Fill)
	assert.Equal(t, 0.4, ds.Tension)
	assert.Equal(t, 3, ds.BorderWidth)
}

func TestTransform_TimeSeriesUnorderedDates(t *testing.T) {
	records := []models.Record{
		{"date": "2024-03-01", "value": 5.0},
		{"date": "2024-01-01", "value": 1.0},
		{"date": "2024-02-01", "value": 3.0},
	}

	data, err := Transform(records, []string{"date", "value"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Jan 2024", "Feb 2024", "Mar 2024"}, data.Labels)
	assert.Equal(t, []float64{1, 3, 5}, data.Datasets[0].Data)
	assert.Equal(t, "increasing", data.Metrics["Trend"])
}

func TestTransform_NumericLabelColumn(t *testing.T) {
	records := []models.Record{
		{"year": 2023.0, "total": 10.0},
		{"year": 2024.0, "total": 20.0},
	}

	for _, requested := range []string{models.ChartBar, models.ChartPie, models.ChartLine} {
		t.Run(requested, func(t *testing.T) {
			data, err := Transform(records, []string{"year", "total"}, requested)
			require.NoError(t, err)

			assert.Equal(t, []string{"2023", "2024"}, data.Labels)
			require.Len(t, data.Datasets, 1)
			assert.Equal(t, "total", data.Datasets[0].Label)
			assert.Equal(t, []float64{10, 20}, data.Datasets[0].Data)
		})
	}
}

func TestTransform_LabelsKeepFullNumbers(t *testing.T) {
	records := []models.Record{
		{"year": 2023.0, "region": "North", "rep": "Ann"},
		{"year": 2024.0, "region": "South", "rep": "Bo"},
		{"year": 1234567.0, "region": "West", "rep": "Cy"},
		{"year": 2.5, "region": "East", "rep": "Di"},
	}

	data, err := Transform(records, []string{"year", "region", "rep"}, "")
	require.NoError(t, err)

	assert.Equal(t, models.ChartComparative, data.Type)
	assert.Equal(t, []string{"2023", "2024", "1234567", "2.5"}, data.Labels)
}

func TestTransform_LineWithoutDatesIsCategorical(t *testing.T) {
	records, columns := salesByProduct()

	data, err := Transform(records, columns, models.ChartLine)
	require.NoError(t, err)

	assert.Equal(t, models.ChartLine, data.Type)
	assert.Equal(t, []string{"A", "B", "C"}, data.Labels)
	assert.Nil(t, data.Options)
}

func TestTransform_Detection(t *testing.T) {
	tests := []struct {
		name    string
		records []models.Record
		columns []string
		want    string
	}{
		{
			name:    "date column wins",
			records: []models.Record{{"day": "2024-05-01", "city": "Oslo", "n": 1.0}},
			columns: []string{"day", "city", "n"},
			want:    models.ChartTimeSeries,
		},
		{
			name:    "one text one number",
			records: []models.Record{{"city": "Oslo", "n": 1.0}},
			columns: []string{"city", "n"},
			want:    models.ChartCategorical,
		},
		{
			name:    "several numbers",
			records: []models.Record{{"a": 1.0, "b": 2.0, "c": 3.0}},
			columns: []string{"a", "b", "c"},
			want:    models.ChartNumerical,
		},
		{
			name:    "two text columns",
			records: []models.Record{{"city": "Oslo", "country": "Norway"}},
			columns: []string{"city", "country"},
			want:    models.ChartComparative,
		},
		{
			name:    "single column",
			records: []models.Record{{"city": "Oslo"}},
			columns: []string{"city"},
			want:    models.ChartGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.records, tt.columns); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
			data, err := Transform(tt.records, tt.columns, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, data.Type)
			assert.NoError(t, Validate(data))
		})
	}
}

func TestTransform_Numerical(t *testing.T) {
	records := []models.Record{
		{"height": 1.8, "weight": 80.0},
		{"height": 1.6, "weight": 55.0},
	}

	data, err := Transform(records, []string{"height", "weight"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Item 1", "Item 2"}, data.Labels)
	require.Len(t, data.Datasets, 2)
	assert.Equal(t, Palette[1], data.Datasets[1].BackgroundColor[0])
	assert.Equal(t, "height, weight", data.Metrics["Variables"])
	assert.Equal(t, "2", data.Metrics["Records"])
}

func TestTransform_Scatter(t *testing.T) {
	records := []models.Record{
		{"x": 1.0, "y": 2.0},
		{"x": 3.0, "y": 4.5},
	}

	data, err := Transform(records, []string{"x", "y"}, models.ChartScatter)
	require.NoError(t, err)

	assert.Equal(t, models.ChartScatter, data.Type)
	assert.Equal(t, []models.Point{{X: 1, Y: 2}, {X: 3, Y: 4.5}}, data.Datasets[0].Points)
	assert.Equal(t, []string{"1", "3"}, data.Labels)
}

func TestTransform_NonNumericValuesBecomeZero(t *testing.T) {
	records := []models.Record{
		{"region": "north", "total": "12"},
		{"region": "south", "total": "n/a"},
	}

	data, err := Transform(records, []string{"region", "total"}, models.ChartBar)
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 0}, data.Datasets[0].Data)
}

func TestTransform_EmptyRecords(t *testing.T) {
	_, err := Transform(nil, []string{"a"}, "")

	var te *apperrors.TransformationError
	require.ErrorAs(t, err, &te)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{12.6, "13"},
		{1500, "1.5K"},
		{2300000, "2.3M"},
		{-0.2, "0"},
		{1250, "1.3K"},
		{1350, "1.4K"},
		{3.25e6, "3.3M"},
		{999999, "1000.0K"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatAxisValue(t *testing.T) {
	assert.Equal(t, "12.5", FormatAxisValue(12.5))
	assert.Equal(t, "12", FormatAxisValue(12))
	assert.Equal(t, "-1.5K", FormatAxisValue(-1500))
	assert.Equal(t, "4.0M", FormatAxisValue(4e6))
	assert.Equal(t, "0.3", FormatAxisValue(0.25))
	assert.Equal(t, "-1.3K", FormatAxisValue(-1250))
}

func TestPieTooltip_ZeroTotal(t *testing.T) {
	assert.Equal(t, "x: 0 (0.0%)", PieTooltip("x", 0, []float64{0, 0}))
}

func TestSuggestChartType(t *testing.T) {
	assert.Equal(t, models.ChartLine, SuggestChartType(&models.ChartData{Type: models.ChartTimeSeries}))
	assert.Equal(t, models.ChartPie, SuggestChartType(&models.ChartData{
		Type:     models.ChartCategorical,
		Labels:   []string{"a", "b"},
		Datasets: []models.Dataset{{Data: []float64{1, 2}}},
	}))
	assert.Equal(t, models.ChartBar, SuggestChartType(&models.ChartData{
		Type:     models.ChartCategorical,
		Labels:   make([]string, 9),
		Datasets: []models.Dataset{{Data: make([]float64, 9)}},
	}))
	assert.Equal(t, models.ChartLine, SuggestChartType(&models.ChartData{
		Type:     models.ChartNumerical,
		Datasets: []models.Dataset{{}, {}},
	}))
	assert.Equal(t, models.ChartBar, SuggestChartType(nil))
}

func TestValidate(t *testing.T) {
	err := Validate(&models.ChartData{
		Labels:   []string{"a", "b"},
		Datasets: []models.Dataset{{Label: "n", Data: []float64{1}}},
	})
	assert.ErrorContains(t, err, "1 values for 2 labels")

	err = Validate(&models.ChartData{
		Labels:   []string{"a"},
		Datasets: []models.Dataset{{Label: "n", Data: []float64{math.NaN()}}},
	})
	assert.ErrorContains(t, err, "non-finite")
}

func TestSummary(t *testing.T) {
	records, columns := salesByProduct()
	data, err := Transform(records, columns, models.ChartPie)
	require.NoError(t, err)

	assert.Equal(t, "Pie chart showing distribution across 3 categories", Summary(data))
	assert.Equal(t, "Chart with 0 data points", Summary(nil))
}

func TestExportJSON(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	records, columns := salesByProduct()
	data, err := Transform(records, columns, models.ChartBar)
	require.NoError(t, err)

	out, err := ExportJSON(data, models.ChartBar)
	require.NoError(t, err)

	assert.Equal(t, "application/json", out.ContentType)
	assert.Equal(t, "chart_1717243200000.json", out.Filename)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Payload, &doc))
	assert.Equal(t, "bar", doc["chartType"])
	assert.Equal(t, "2024-06-01T12:00:00Z", doc["exportedAt"])
}
