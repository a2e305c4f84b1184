package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/inference"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// Dialect selects identifier quoting, placeholder syntax and row limiting.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectSQLServer Dialect = "sqlserver"
)

// DialectFor maps a data source type to its SQL dialect.
func DialectFor(t models.DataSourceType) Dialect {
	if t == models.DataSourceSQLServer {
		return DialectSQLServer
	}
	return DialectPostgres
}

// QuoteIdentifier quotes a possibly schema-qualified identifier.
func (d Dialect) QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	if d == DialectSQLServer {
		for i, p := range parts {
			parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
		}
		return strings.Join(parts, ".")
	}
	return pgx.Identifier(parts).Sanitize()
}

func (d Dialect) placeholder(n int) string {
	if d == DialectSQLServer {
		return "@p" + strconv.Itoa(n)
	}
	return "$" + strconv.Itoa(n)
}

func (d Dialect) textCast(expr string) string {
	if d == DialectSQLServer {
		return "LOWER(CAST(" + expr + " AS NVARCHAR(MAX)))"
	}
	return "LOWER(CAST(" + expr + " AS TEXT))"
}

func (d Dialect) yearOf(expr string) string {
	if d == DialectSQLServer {
		return "YEAR(" + expr + ")"
	}
	return "EXTRACT(YEAR FROM " + expr + ")"
}

// CompiledQuery is a parameterized statement ready for execution.
type CompiledQuery struct {
	SQL  string
	Args []any
}

// Compile translates a structured query against one table into a parameterized
// SQL statement. String filter values are screened with libinjection before
// they are bound. schema is optional and lets year_equals fall back to the
// first date column when the named column is not a date.
func Compile(q models.StructuredQuery, table string, d Dialect, schema *models.Schema) (*CompiledQuery, error) {
	if strings.TrimSpace(table) == "" {
		return nil, apperrors.NewValidationError("table", "", "a table is required to compile a structured query")
	}
	if hits := CheckFilters(q.Filters); len(hits) > 0 {
		return nil, apperrors.NewValidationError("injection", hits[0].Fingerprint,
			fmt.Sprintf("filter value for %q looks like SQL injection", hits[0].ParamName))
	}

	var (
		b    strings.Builder
		args []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.placeholder(len(args))
	}

	b.WriteString("SELECT ")
	if d == DialectSQLServer && q.Limit > 0 {
		fmt.Fprintf(&b, "TOP (%d) ", q.Limit)
	}
	b.WriteString(strings.Join(selectList(q, d), ", "))
	b.WriteString(" FROM ")
	b.WriteString(d.QuoteIdentifier(table))

	var where []string
	for _, f := range q.Filters {
		if cond, ok := compileFilter(f, d, schema, bind); ok {
			where = append(where, cond)
		}
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, c := range q.GroupBy {
			cols[i] = d.QuoteIdentifier(c)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(cols, ", "))
	}

	if q.OrderBy != nil && q.OrderBy.Column != "" {
		dir := "ASC"
		if q.OrderBy.Descending() {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", d.QuoteIdentifier(q.OrderBy.Column), dir)
	}

	if d != DialectSQLServer && q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	return &CompiledQuery{SQL: b.String(), Args: args}, nil
}

func selectList(q models.StructuredQuery, d Dialect) []string {
	if len(q.Aggregations) > 0 || len(q.GroupBy) > 0 {
		cols := make([]string, 0, len(q.GroupBy)+len(q.Aggregations))
		for _, c := range q.GroupBy {
			cols = append(cols, d.QuoteIdentifier(c))
		}
		for _, a := range q.Aggregations {
			cols = append(cols, aggregateExpr(a, d)+" AS "+d.QuoteIdentifier(a.OutputName()))
		}
		return cols
	}
	if len(q.Select) == 0 {
		return []string{"*"}
	}
	cols := make([]string, 0, len(q.Select))
	for _, c := range q.Select {
		if c == "*" {
			return []string{"*"}
		}
		cols = append(cols, d.QuoteIdentifier(c))
	}
	return cols
}

func aggregateExpr(a models.Aggregation, d Dialect) string {
	if a.Function == models.AggCount {
		if a.Column == "" || a.Column == "*" {
			return "COUNT(*)"
		}
		return "COUNT(" + d.QuoteIdentifier(a.Column) + ")"
	}
	fn := strings.ToUpper(string(a.Function))
	switch a.Function {
	case models.AggSum, models.AggAvg, models.AggMax, models.AggMin:
	default:
		fn = "COUNT"
	}
	return fn + "(" + d.QuoteIdentifier(a.Column) + ")"
}

func compileFilter(f models.Filter, d Dialect, schema *models.Schema, bind func(any) string) (string, bool) {
	col := d.QuoteIdentifier(f.Column)

	switch f.Operator {
	case models.OpEquals:
		if n, ok := inference.ToFloat(f.Value); ok {
			return col + " = " + bind(n), true
		}
		return d.textCast(col) + " = " + bind(strings.ToLower(fmt.Sprint(f.Value))), true
	case models.OpContains:
		return likeFilter(col, "%"+escapeLike(f.Value)+"%", d, bind), true
	case models.OpStartsWith:
		return likeFilter(col, escapeLike(f.Value)+"%", d, bind), true
	case models.OpEndsWith:
		return likeFilter(col, "%"+escapeLike(f.Value), d, bind), true
	case models.OpGreaterThan, models.OpLessThan, models.OpGreaterEqual, models.OpLessEqual:
		n, ok := inference.ToFloat(f.Value)
		if !ok {
			return "1 = 0", true
		}
		return col + " " + comparison(f.Operator) + " " + bind(n), true
	case models.OpDateAfter, models.OpDateBefore, models.OpDateEquals:
		t, ok := inference.ParseDate(f.Value)
		if !ok {
			return "1 = 0", true
		}
		op := map[models.FilterOperator]string{
			models.OpDateAfter:  ">",
			models.OpDateBefore: "<",
			models.OpDateEquals: "=",
		}[f.Operator]
		return "CAST(" + col + " AS DATE) " + op + " " + bind(t.Format("2006-01-02")), true
	case models.OpYearEquals:
		year, ok := yearValue(f.Value)
		if !ok {
			return "1 = 0", true
		}
		if columnType(f.Column, schema) == models.ColumnNumber {
			return col + " = " + bind(year), true
		}
		return d.yearOf(d.QuoteIdentifier(yearColumn(f.Column, schema))) + " = " + bind(year), true
	}
	return "", false
}

func likeFilter(col, pattern string, d Dialect, bind func(any) string) string {
	return d.textCast(col) + " LIKE " + bind(pattern) + " ESCAPE '!'"
}

func escapeLike(v any) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_", "[", "![")
	return r.Replace(strings.ToLower(fmt.Sprint(v)))
}

func comparison(op models.FilterOperator) string {
	switch op {
	case models.OpGreaterThan:
		return ">"
	case models.OpLessThan:
		return "<"
	case models.OpGreaterEqual:
		return ">="
	}
	return "<="
}

func yearColumn(name string, schema *models.Schema) string {
	if schema == nil || len(schema.Columns) == 0 {
		return name
	}
	dates := schema.ColumnsOfType(models.ColumnDate)
	for _, c := range dates {
		if c == name {
			return name
		}
	}
	if len(dates) > 0 {
		return dates[0]
	}
	return name
}

func columnType(name string, schema *models.Schema) models.ColumnType {
	if schema == nil {
		return ""
	}
	for _, c := range schema.Columns {
		if c.Name == name {
			return c.Type
		}
	}
	return ""
}

func yearValue(v any) (int, bool) {
	if f, ok := inference.ToFloat(v); ok {
		return int(f), true
	}
	if t, ok := inference.ParseDate(v); ok {
		return t.Year(), true
	}
	return 0, false
}
