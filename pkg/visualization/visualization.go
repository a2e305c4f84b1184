// Package visualization binds prepared result rows to renderer axis roles.
package visualization

import (
	"sort"

	"github.com/ekaya-inc/ekaya-insights/pkg/chart"
	"github.com/ekaya-inc/ekaya-insights/pkg/inference"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// Build prepares rows, derives the axis config and shapes the chart data for
// chartType. Only chart shaping can fail.
func Build(chartType string, result *models.Result) (*models.Visualization, error) {
	if result == nil {
		result = &models.Result{}
	}
	data, err := chart.Transform(result.Records, result.Columns, chartType)
	if err != nil {
		return nil, err
	}
	rows := PrepareData(chartType, result)
	return &models.Visualization{
		Type:   chartType,
		Data:   rows,
		Config: GenerateConfig(chartType, preparedColumns(chartType, result.Columns), rows),
		Chart:  data,
	}, nil
}

// GenerateConfig derives axis bindings from the shape of data alone. columns
// gives the key order of the records; when empty the keys are sorted.
func GenerateConfig(chartType string, columns []string, data []models.Record) models.ChartConfig {
	cfg := models.ChartConfig{Responsive: true}

	switch chartType {
	case models.ChartPie, models.ChartDoughnut:
		cfg.DataKey = "value"
		cfg.NameKey = "name"
	case models.ChartScatter:
		cfg.XAxisDataKey = "x"
		cfg.YAxisDataKey = "y"
	case models.ChartBar, models.ChartLine, models.ChartArea:
		if len(data) == 0 {
			break
		}
		keys := orderedKeys(data[0], columns)
		if len(keys) > 0 {
			cfg.XAxisDataKey = keys[0]
		}
		if len(keys) > 1 {
			cfg.YAxisDataKey = keys[1]
		}
	}
	return cfg
}

// PrepareData reshapes result rows for a renderer:
//   - pie: {name, value} from the first two columns
//   - bar/line/area: numeric-looking strings become numbers
//   - scatter: {x, y} from the first two columns plus the original fields
//
// Results with fewer than two columns prepare to no rows for those types.
// Other chart types get the rows unchanged.
func PrepareData(chartType string, result *models.Result) []models.Record {
	if result == nil || len(result.Records) == 0 {
		return []models.Record{}
	}
	columns := result.Columns
	if len(columns) == 0 {
		columns = orderedKeys(result.Records[0], nil)
	}

	switch chartType {
	case models.ChartPie, models.ChartDoughnut:
		if len(columns) < 2 {
			return []models.Record{}
		}
		out := make([]models.Record, len(result.Records))
		for i, r := range result.Records {
			out[i] = models.Record{"name": r[columns[0]], "value": numberOrZero(r[columns[1]])}
		}
		return out

	case models.ChartBar, models.ChartLine, models.ChartArea:
		if len(columns) < 2 {
			return []models.Record{}
		}
		out := make([]models.Record, len(result.Records))
		for i, r := range result.Records {
			rec := make(models.Record, len(columns))
			for _, c := range columns {
				v := r[c]
				if s, ok := v.(string); ok {
					if f, ok := inference.ParseNumber(s); ok {
						v = f
					}
				}
				rec[c] = v
			}
			out[i] = rec
		}
		return out

	case models.ChartScatter:
		if len(columns) < 2 {
			return []models.Record{}
		}
		out := make([]models.Record, len(result.Records))
		for i, r := range result.Records {
			rec := make(models.Record, len(r)+2)
			for k, v := range r {
				rec[k] = v
			}
			rec["x"] = numberOrZero(r[columns[0]])
			rec["y"] = numberOrZero(r[columns[1]])
			out[i] = rec
		}
		return out
	}
	return result.Records
}

// preparedColumns is the key order of PrepareData's output.
func preparedColumns(chartType string, columns []string) []string {
	switch chartType {
	case models.ChartPie, models.ChartDoughnut:
		return []string{"name", "value"}
	case models.ChartScatter:
		return append([]string{"x", "y"}, columns...)
	}
	return columns
}

func orderedKeys(rec models.Record, columns []string) []string {
	var keys []string
	for _, c := range columns {
		if _, ok := rec[c]; ok {
			keys = append(keys, c)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func numberOrZero(v any) float64 {
	if f, ok := inference.ToFloat(v); ok {
		return f
	}
	return 0
}
