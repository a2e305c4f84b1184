package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// maxPieSlices is the largest label count still suggested as a pie.
const maxPieSlices = 8

// SuggestChartType recommends a renderer type for already shaped data.
func SuggestChartType(data *models.ChartData) string {
	if data == nil {
		return models.ChartBar
	}
	switch {
	case data.Type == models.ChartTimeSeries:
		return models.ChartLine
	case data.Type == models.ChartCategorical && len(data.Datasets) == 1 && len(data.Labels) <= maxPieSlices:
		return models.ChartPie
	case len(data.Datasets) > 1:
		return models.ChartLine
	}
	return models.ChartBar
}

// Validate checks that every dataset lines up with the labels and holds
// finite numbers.
func Validate(data *models.ChartData) error {
	if data == nil || len(data.Labels) == 0 {
		return apperrors.NewTransformationError("chart has no labels")
	}
	for _, ds := range data.Datasets {
		if len(ds.Data) != len(data.Labels) {
			return apperrors.NewTransformationError(fmt.Sprintf(
				"dataset %q has %d values for %d labels", ds.Label, len(ds.Data), len(data.Labels)))
		}
		for _, v := range ds.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return apperrors.NewTransformationError(fmt.Sprintf("dataset %q holds a non-finite value", ds.Label))
			}
		}
	}
	return nil
}

// Summary is a one-line description of a chart.
func Summary(data *models.ChartData) string {
	n := 0
	kind := ""
	if data != nil {
		n = len(data.Labels)
		kind = data.Type
	}
	switch kind {
	case models.ChartPie, models.ChartDoughnut:
		return fmt.Sprintf("Pie chart showing distribution across %d categories", n)
	case models.ChartBar, models.ChartCategorical, models.ChartComparative:
		return fmt.Sprintf("Bar chart comparing %d data points", n)
	case models.ChartLine, models.ChartTimeSeries:
		return fmt.Sprintf("Line chart showing trends across %d time periods", n)
	case models.ChartArea:
		return fmt.Sprintf("Area chart displaying %d data points over time", n)
	case models.ChartScatter:
		return fmt.Sprintf("Scatter plot with %d data points showing correlation", n)
	}
	return fmt.Sprintf("Chart with %d data points", n)
}

// Export is a downloadable rendition of a chart.
type Export struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Payload     []byte `json:"-"`
}

var now = time.Now

// ExportJSON serializes chart data with its type and export time.
func ExportJSON(data *models.ChartData, chartType string) (*Export, error) {
	at := now()
	doc := struct {
		ChartType  string            `json:"chartType"`
		Data       *models.ChartData `json:"data"`
		ExportedAt string            `json:"exportedAt"`
	}{
		ChartType:  chartType,
		Data:       data,
		ExportedAt: at.UTC().Format(time.RFC3339),
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode chart export: %w", err)
	}
	return &Export{
		Filename:    fmt.Sprintf("chart_%d.json", at.UnixMilli()),
		ContentType: "application/json",
		Payload:     payload,
	}, nil
}
