package fallback

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-insights/pkg/chart"
	"github.com/ekaya-inc/ekaya-insights/pkg/inference"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// DefaultTitle names a conversation when no better title is available.
const DefaultTitle = "Analytics Discussion"

// maxNumericInsights bounds the per-column totals listed in key insights.
const maxNumericInsights = 3

// Insights describes a result with templates. KeyInsights and
// Recommendations are never empty, including for zero rows.
func Insights(text string, result *models.Result, analysis *models.Analysis) models.Insights {
	n := result.RowCount()
	in := models.Insights{
		Summary:     fmt.Sprintf("Found %d records for your query: %q", n, text),
		KeyInsights: []string{fmt.Sprintf("Total records analyzed: %d", n)},
	}

	if n == 0 {
		in.KeyInsights = append(in.KeyInsights, "No records matched the filters applied")
		in.Recommendations = []string{
			"Check that the date filters match the data",
			"Try widening the time range",
			"Verify the data source holds the columns the question refers to",
		}
		return in
	}

	numeric, textual := splitColumns(result)
	for i, col := range numeric {
		if i == maxNumericInsights {
			break
		}
		in.KeyInsights = append(in.KeyInsights, fmt.Sprintf("Total %s: %s", col, chart.FormatNumber(sum(result.Records, col))))
	}
	if len(numeric) > 0 && len(textual) > 0 {
		if label, value, ok := top(result.Records, textual[0], numeric[0]); ok {
			in.KeyInsights = append(in.KeyInsights, fmt.Sprintf("Top %s: %s (%s)", textual[0], label, chart.FormatNumber(value)))
		}
	}

	in.Recommendations = []string{"Ask a more specific question for deeper insights"}
	if analysis != nil && analysis.Timeframe != "" {
		in.Recommendations = append(in.Recommendations, "Compare "+analysis.Timeframe+" with another period")
	}
	if n >= DefaultLimit {
		in.Recommendations = append(in.Recommendations, "Add filters; results were capped at the row limit")
	}
	return in
}

// Title returns the first words of the message, or DefaultTitle.
func Title(firstMessage string) string {
	words := strings.Fields(firstMessage)
	if len(words) == 0 {
		return DefaultTitle
	}
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	if r := []rune(title); len(r) > 50 {
		title = strings.TrimSpace(string(r[:50]))
	}
	return title
}

// splitColumns classifies result columns by their first non-empty value.
func splitColumns(result *models.Result) (numeric, textual []string) {
	for _, col := range result.Columns {
		for _, r := range result.Records {
			v := r[col]
			if inference.IsEmpty(v) {
				continue
			}
			switch inference.ClassifyValue(v) {
			case models.ColumnNumber:
				numeric = append(numeric, col)
			case models.ColumnString:
				textual = append(textual, col)
			}
			break
		}
	}
	return numeric, textual
}

func sum(records []models.Record, col string) float64 {
	total := 0.0
	for _, r := range records {
		if f, ok := inference.ToFloat(r[col]); ok {
			total += f
		}
	}
	return total
}

// top returns the label with the largest summed value. Ties keep the first seen.
func top(records []models.Record, labelCol, valueCol string) (string, float64, bool) {
	totals := map[string]float64{}
	var order []string
	for _, r := range records {
		label := fmt.Sprint(r[labelCol])
		if _, seen := totals[label]; !seen {
			order = append(order, label)
			totals[label] = 0
		}
		if f, ok := inference.ToFloat(r[valueCol]); ok {
			totals[label] += f
		}
	}
	if len(order) == 0 {
		return "", 0, false
	}
	best := order[0]
	for _, l := range order[1:] {
		if totals[l] > totals[best] {
			best = l
		}
	}
	return best, totals[best], true
}
