// Package query evaluates structured queries over in-memory records.
//
// Operators run in a fixed order: filter, group-by with aggregation, order-by,
// limit, then select. Select is skipped once aggregations have produced the
// output shape.
package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-insights/pkg/inference"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// GroupKeySeparator joins group-by values into a single group key.
const GroupKeySeparator = "|"

// Apply runs q over result and returns a new result. The input is not modified.
// schema is optional; when present it identifies the date columns used by the
// year_equals fallback.
func Apply(result *models.Result, q models.StructuredQuery, schema *models.Schema) *models.Result {
	if result == nil {
		return &models.Result{}
	}

	columns := append([]string(nil), result.Columns...)
	dateCols := dateColumns(columns, schema, result.Records)

	records := Filter(result.Records, q.Filters, dateCols)

	aggregated := false
	if len(q.Aggregations) > 0 || len(q.GroupBy) > 0 {
		records, columns = Group(records, q.GroupBy, q.Aggregations)
		aggregated = len(q.Aggregations) > 0
	}

	if q.OrderBy != nil && q.OrderBy.Column != "" {
		records = Order(records, *q.OrderBy)
	}

	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}

	if !aggregated && selectsSubset(q.Select) {
		records, columns = Select(records, q.Select)
	}

	return &models.Result{Columns: columns, Records: records}
}

// Filter keeps the records that satisfy every filter.
func Filter(records []models.Record, filters []models.Filter, dateCols []string) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		keep := true
		for _, f := range filters {
			if !Matches(r, f, dateCols) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// Matches evaluates one filter against one record. Unknown operators match.
func Matches(r models.Record, f models.Filter, dateCols []string) bool {
	v := r[f.Column]

	switch f.Operator {
	case models.OpEquals:
		if a, ok := inference.ToFloat(v); ok {
			if b, ok := inference.ToFloat(f.Value); ok {
				return a == b
			}
		}
		return strings.EqualFold(stringify(v), stringify(f.Value))
	case models.OpContains:
		return strings.Contains(lower(v), lower(f.Value))
	case models.OpStartsWith:
		return strings.HasPrefix(lower(v), lower(f.Value))
	case models.OpEndsWith:
		return strings.HasSuffix(lower(v), lower(f.Value))
	case models.OpGreaterThan, models.OpLessThan, models.OpGreaterEqual, models.OpLessEqual:
		a, ok := inference.ToFloat(v)
		if !ok {
			return false
		}
		b, ok := inference.ToFloat(f.Value)
		if !ok {
			return false
		}
		switch f.Operator {
		case models.OpGreaterThan:
			return a > b
		case models.OpLessThan:
			return a < b
		case models.OpGreaterEqual:
			return a >= b
		default:
			return a <= b
		}
	case models.OpDateAfter, models.OpDateBefore, models.OpDateEquals:
		a, ok := day(v)
		if !ok {
			return false
		}
		b, ok := day(f.Value)
		if !ok {
			return false
		}
		switch f.Operator {
		case models.OpDateAfter:
			return a > b
		case models.OpDateBefore:
			return a < b
		default:
			return a == b
		}
	case models.OpYearEquals:
		want, ok := yearOf(f.Value)
		if !ok {
			return false
		}
		if y, ok := inference.ToFloat(v); ok {
			return int(y) == want
		}
		d, ok := inference.ParseDate(v)
		if !ok {
			// the named column is often a logical "year" that the data stores
			// as a full date elsewhere
			for _, c := range dateCols {
				if d, ok = inference.ParseDate(r[c]); ok {
					break
				}
			}
		}
		if !ok {
			return false
		}
		return d.Year() == want
	}
	return true
}

// Group partitions records by the group-by columns and computes aggregations per
// group. Groups are emitted in first-seen order. With no group-by columns all
// records form a single group.
func Group(records []models.Record, groupBy []string, aggs []models.Aggregation) ([]models.Record, []string) {
	columns := make([]string, 0, len(groupBy)+len(aggs))
	columns = append(columns, groupBy...)
	for _, a := range aggs {
		columns = append(columns, a.OutputName())
	}

	type group struct {
		first models.Record
		rows  []models.Record
	}
	var order []string
	groups := make(map[string]*group)

	if len(groupBy) == 0 {
		order = append(order, "")
		groups[""] = &group{rows: records}
	} else {
		for _, r := range records {
			parts := make([]string, len(groupBy))
			for i, c := range groupBy {
				parts[i] = stringify(r[c])
			}
			key := strings.Join(parts, GroupKeySeparator)
			g, ok := groups[key]
			if !ok {
				g = &group{first: r}
				groups[key] = g
				order = append(order, key)
			}
			g.rows = append(g.rows, r)
		}
	}

	out := make([]models.Record, 0, len(order))
	for _, key := range order {
		g := groups[key]
		rec := make(models.Record, len(columns))
		for _, c := range groupBy {
			rec[c] = g.first[c]
		}
		for _, a := range aggs {
			rec[a.OutputName()] = Aggregate(g.rows, a)
		}
		out = append(out, rec)
	}
	return out, columns
}

// Aggregate computes a single aggregation over rows. Non-numeric values are
// ignored by sum, avg, max and min; count is the row count.
func Aggregate(rows []models.Record, a models.Aggregation) any {
	if a.Function == models.AggCount {
		return len(rows)
	}

	var values []float64
	for _, r := range rows {
		if f, ok := inference.ToFloat(r[a.Column]); ok && !math.IsNaN(f) {
			values = append(values, f)
		}
	}

	switch a.Function {
	case models.AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case models.AggAvg:
		if len(values) == 0 {
			return 0.0
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case models.AggMax, models.AggMin:
		if len(values) == 0 {
			return nil
		}
		m := values[0]
		for _, v := range values[1:] {
			if (a.Function == models.AggMax && v > m) || (a.Function == models.AggMin && v < m) {
				m = v
			}
		}
		return m
	}
	return nil
}

// Order stable-sorts records by one column. Numbers compare numerically and
// everything else compares as strings.
func Order(records []models.Record, o models.OrderBy) []models.Record {
	out := append([]models.Record(nil), records...)
	desc := o.Descending()
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i][o.Column], out[j][o.Column])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Select projects records onto the given columns.
func Select(records []models.Record, cols []string) ([]models.Record, []string) {
	out := make([]models.Record, len(records))
	for i, r := range records {
		p := make(models.Record, len(cols))
		for _, c := range cols {
			p[c] = r[c]
		}
		out[i] = p
	}
	return out, append([]string(nil), cols...)
}

func selectsSubset(cols []string) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if c == "*" {
			return false
		}
	}
	return true
}

func dateColumns(columns []string, schema *models.Schema, records []models.Record) []string {
	if schema != nil && len(schema.Columns) > 0 {
		return schema.ColumnsOfType(models.ColumnDate)
	}
	if len(records) == 0 {
		return nil
	}
	var out []string
	for _, c := range columns {
		if _, ok := records[0][c].(string); !ok {
			continue
		}
		if _, ok := inference.ParseDate(records[0][c]); ok {
			out = append(out, c)
		}
	}
	return out
}

func compare(a, b any) int {
	fa, okA := inference.ToFloat(a)
	fb, okB := inference.ToFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(stringify(a), stringify(b))
}

func day(v any) (string, bool) {
	d, ok := inference.ParseDate(v)
	if !ok {
		return "", false
	}
	return d.Format("2006-01-02"), true
}

func yearOf(v any) (int, bool) {
	if f, ok := inference.ToFloat(v); ok {
		return int(f), true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if len(s) >= 4 {
			if y, err := strconv.Atoi(s[:4]); err == nil {
				return y, true
			}
		}
	}
	return 0, false
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func lower(v any) string {
	return strings.ToLower(stringify(v))
}
