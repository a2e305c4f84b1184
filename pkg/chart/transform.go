// Package chart shapes query results into renderer-independent chart data.
package chart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/inference"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// columnKinds holds the inferred type of each column in result order.
type columnKinds struct {
	names []string
	types map[string]models.ColumnType
}

func classify(records []models.Record, columns []string) columnKinds {
	if len(columns) == 0 && len(records) > 0 {
		for name := range records[0] {
			columns = append(columns, name)
		}
		sort.Strings(columns)
	}
	kinds := columnKinds{names: columns, types: make(map[string]models.ColumnType, len(columns))}
	for _, col := range columns {
		samples := make([]any, 0, len(records))
		for _, rec := range records {
			samples = append(samples, rec[col])
		}
		kinds.types[col] = inference.InferQuick(samples)
	}
	return kinds
}

func (k columnKinds) ofType(match func(models.ColumnType) bool) []string {
	var out []string
	for _, name := range k.names {
		if match(k.types[name]) {
			out = append(out, name)
		}
	}
	return out
}

func (k columnKinds) dates() []string {
	return k.ofType(func(t models.ColumnType) bool { return t == models.ColumnDate })
}

func (k columnKinds) numbers() []string {
	return k.ofType(func(t models.ColumnType) bool { return t == models.ColumnNumber })
}

func (k columnKinds) texts() []string {
	return k.ofType(models.ColumnType.IsTextual)
}

// Detect picks a chart shape from the column types of records.
func Detect(records []models.Record, columns []string) string {
	return detect(classify(records, columns))
}

func detect(k columnKinds) string {
	texts, numbers := k.texts(), k.numbers()
	switch {
	case len(k.dates()) > 0:
		return models.ChartTimeSeries
	case len(texts) == 1 && len(numbers) == 1:
		return models.ChartCategorical
	case len(numbers) > 1:
		return models.ChartNumerical
	case len(k.names) >= 2:
		return models.ChartComparative
	default:
		return models.ChartGeneric
	}
}

// Transform shapes records into ChartData. An empty requested type means the
// shape is detected from the data; a renderer type (bar, line, pie...) forces
// the matching shaping and is kept as the result's Type.
func Transform(records []models.Record, columns []string, requested string) (*models.ChartData, error) {
	if len(records) == 0 {
		return nil, apperrors.NewTransformationError("no records to chart")
	}
	k := classify(records, columns)

	var data *models.ChartData
	switch requested {
	case models.ChartBar, models.ChartPie, models.ChartDoughnut:
		data = categorical(records, k)
	case models.ChartLine, models.ChartArea:
		if len(k.dates()) > 0 {
			data = timeSeries(records, k)
		} else {
			data = categorical(records, k)
		}
	case models.ChartScatter:
		data = scatter(records, k)
	default:
		requested = ""
		switch detect(k) {
		case models.ChartTimeSeries:
			data = timeSeries(records, k)
		case models.ChartCategorical:
			data = categorical(records, k)
		case models.ChartNumerical:
			data = numerical(records, k)
		case models.ChartComparative:
			data = comparative(records, k)
		default:
			data = generic(records, k)
		}
	}

	if requested != "" {
		data.Type = requested
	}
	data.RawData = records
	if data.Type == models.ChartPie || data.Type == models.ChartDoughnut {
		decoratePie(data)
	}
	return data, nil
}

// labelAndValue picks the label column and the value column for a
// one-series chart. Without a text column the first column labels the
// rows, so a numeric key such as a year is never charted as the value.
// Either may be empty.
func labelAndValue(k columnKinds) (label, value string) {
	if texts := k.texts(); len(texts) > 0 {
		label = texts[0]
	} else if len(k.names) > 0 {
		label = k.names[0]
	}
	for _, n := range k.numbers() {
		if n != label {
			value = n
			break
		}
	}
	return label, value
}

func categorical(records []models.Record, k columnKinds) *models.ChartData {
	labelCol, valueCol := labelAndValue(k)
	labels := make([]string, len(records))
	values := make([]float64, len(records))
	for i, rec := range records {
		labels[i] = stringify(rec[labelCol])
		values[i] = number(rec, valueCol)
	}

	return &models.ChartData{
		Type:     models.ChartCategorical,
		Labels:   labels,
		Datasets: []models.Dataset{series(valueCol, values, 0)},
		Metrics: map[string]string{
			"Total":   FormatNumber(sum(values)),
			"Average": FormatNumber(mean(values)),
			"Max":     FormatNumber(maxOf(values)),
			"Min":     FormatNumber(minOf(values)),
		},
	}
}

func timeSeries(records []models.Record, k columnKinds) *models.ChartData {
	dateCol := k.dates()[0]
	valueCol := ""
	if numbers := k.numbers(); len(numbers) > 0 {
		valueCol = numbers[0]
	}

	type point struct {
		at time.Time
		ok bool
		v  float64
		id int
	}
	points := make([]point, len(records))
	for i, rec := range records {
		at, ok := inference.ParseDate(rec[dateCol])
		points[i] = point{at: at, ok: ok, v: number(rec, valueCol), id: i}
	}
	// unparseable dates keep their relative order after the dated rows
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].ok != points[j].ok {
			return points[i].ok
		}
		return points[i].ok && points[i].at.Before(points[j].at)
	})

	labels := make([]string, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		if p.ok {
			labels[i] = p.at.Format("Jan 2006")
		} else {
			labels[i] = stringify(records[p.id][dateCol])
		}
		values[i] = p.v
	}

	ds := models.Dataset{
		Label:           valueCol,
		Data:            values,
		BackgroundColor: []string{areaFill},
		BorderColor:     []string{opaque(Palette[0])},
		BorderWidth:     3,
		Fill:            true,
		Tension:         0.4,
	}
	return &models.ChartData{
		Type:     models.ChartTimeSeries,
		Labels:   labels,
		Datasets: []models.Dataset{ds},
		Metrics: map[string]string{
			"Total":       FormatNumber(sum(values)),
			"Average":     FormatNumber(mean(values)),
			"Trend":       trend(values),
			"Data Points": fmt.Sprint(len(values)),
		},
	}
}

func numerical(records []models.Record, k columnKinds) *models.ChartData {
	numbers := k.numbers()
	labels := make([]string, len(records))
	for i := range records {
		labels[i] = fmt.Sprintf("Item %d", i+1)
	}
	datasets := make([]models.Dataset, len(numbers))
	for di, col := range numbers {
		values := make([]float64, len(records))
		for i, rec := range records {
			values[i] = number(rec, col)
		}
		datasets[di] = series(col, values, di)
	}

	return &models.ChartData{
		Type:     models.ChartNumerical,
		Labels:   labels,
		Datasets: datasets,
		Metrics: map[string]string{
			"Columns":   fmt.Sprint(len(numbers)),
			"Records":   fmt.Sprint(len(records)),
			"Variables": strings.Join(numbers, ", "),
		},
	}
}

func comparative(records []models.Record, k columnKinds) *models.ChartData {
	labelCol, valueCol := k.names[0], k.names[1]
	labels := make([]string, len(records))
	values := make([]float64, len(records))
	for i, rec := range records {
		labels[i] = stringify(rec[labelCol])
		values[i] = number(rec, valueCol)
	}

	return &models.ChartData{
		Type:     models.ChartComparative,
		Labels:   labels,
		Datasets: []models.Dataset{series(valueCol, values, 0)},
		Metrics: map[string]string{
			"Items": fmt.Sprint(len(records)),
			"Total": FormatNumber(sum(values)),
		},
	}
}

func generic(records []models.Record, k columnKinds) *models.ChartData {
	labels := make([]string, len(records))
	var labelCol string
	if len(k.names) > 0 {
		labelCol = k.names[0]
	}
	for i, rec := range records {
		labels[i] = stringify(rec[labelCol])
	}

	valueCols := k.names
	if len(valueCols) > 1 {
		valueCols = valueCols[1:]
	}
	datasets := make([]models.Dataset, 0, len(valueCols))
	for di, col := range valueCols {
		values := make([]float64, len(records))
		for i, rec := range records {
			values[i] = number(rec, col)
		}
		datasets = append(datasets, series(col, values, di))
	}

	return &models.ChartData{
		Type:     models.ChartGeneric,
		Labels:   labels,
		Datasets: datasets,
		Metrics: map[string]string{
			"Columns": fmt.Sprint(len(k.names)),
			"Rows":    fmt.Sprint(len(records)),
		},
	}
}

func scatter(records []models.Record, k columnKinds) *models.ChartData {
	numbers := k.numbers()
	var xCol, yCol string
	switch {
	case len(numbers) >= 2:
		xCol, yCol = numbers[0], numbers[1]
	case len(numbers) == 1:
		yCol = numbers[0]
	}

	labels := make([]string, len(records))
	values := make([]float64, len(records))
	points := make([]models.Point, len(records))
	for i, rec := range records {
		x := float64(i + 1)
		if xCol != "" {
			x = number(rec, xCol)
		}
		y := number(rec, yCol)
		labels[i] = FormatAxisValue(x)
		values[i] = y
		points[i] = models.Point{X: x, Y: y}
	}

	ds := series(yCol, values, 0)
	ds.Points = points
	return &models.ChartData{
		Type:     models.ChartScatter,
		Labels:   labels,
		Datasets: []models.Dataset{ds},
		Metrics: map[string]string{
			"Points": fmt.Sprint(len(points)),
		},
	}
}

// decoratePie switches to per-row colors and adds pie renderer options.
func decoratePie(data *models.ChartData) {
	for di := range data.Datasets {
		ds := &data.Datasets[di]
		ds.BackgroundColor = make([]string, len(ds.Data))
		ds.BorderColor = make([]string, len(ds.Data))
		for i := range ds.Data {
			ds.BackgroundColor[i] = Palette[i%len(Palette)]
			ds.BorderColor[i] = opaque(Palette[i%len(Palette)])
		}
	}

	opts := &models.ChartOptions{Legend: &models.LegendOptions{Position: "right"}}
	if len(data.Datasets) > 0 {
		values := data.Datasets[0].Data
		opts.Tooltips = make([]string, len(values))
		for i, v := range values {
			opts.Tooltips[i] = PieTooltip(data.Labels[i], v, values)
		}
	}
	if data.Type == models.ChartDoughnut {
		opts.Cutout = "60%"
	}
	data.Options = opts
}

func series(label string, values []float64, index int) models.Dataset {
	color := Palette[index%len(Palette)]
	return models.Dataset{
		Label:           label,
		Data:            values,
		BackgroundColor: []string{color},
		BorderColor:     []string{opaque(color)},
		BorderWidth:     2,
	}
}

func number(rec models.Record, col string) float64 {
	if col == "" {
		return 0
	}
	f, ok := inference.ToFloat(rec[col])
	if !ok {
		return 0
	}
	return f
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func trend(values []float64) string {
	if len(values) < 2 {
		return "stable"
	}
	switch d := values[len(values)-1] - values[0]; {
	case d > 0:
		return "increasing"
	case d < 0:
		return "decreasing"
	}
	return "stable"
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
