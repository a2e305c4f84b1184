package fallback

import (
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-insights/pkg/sql"
)

// DefaultLimit caps every generated query.
const DefaultLimit = 1000

// entityTables lists the table names an entity may live in, most specific
// first.
var entityTables = map[string][]string{
	EntitySales:     {"sales", "revenue", "orders", "order_details", "transactions"},
	EntityCustomers: {"customers", "users", "clients"},
	EntityProducts:  {"products", "services", "items"},
}

// entityColumns lists the column names an entity may appear under.
var entityColumns = map[string][]string{
	EntitySales:     {"sales", "revenue", "amount", "total"},
	EntityCustomers: {"customers", "users", "clients"},
	EntityProducts:  {"products", "services", "items"},
}

// GenerateQuery builds a structured query for a non-SQL source. It always
// returns a usable query, degrading to all rows when the schema gives it
// nothing to group or sum.
func GenerateQuery(analysis models.Analysis, schema *models.Schema) models.StructuredQuery {
	return build(analysis, columnsOf(schema))
}

// GenerateSQLQuery builds the fallback for a SQL source. When the schema lists
// tables, the query targets the table that best matches the analysis entities.
func GenerateSQLQuery(analysis models.Analysis, schema *models.Schema) models.Query {
	if schema == nil || len(schema.Tables) == 0 {
		return models.StructuredOf(GenerateQuery(analysis, schema))
	}
	table := pickTable(analysis.Entities, schema.Tables)
	q := models.StructuredOf(build(analysis, table.Columns))
	q.Table = table.Name
	return q
}

// GenerateSQL compiles the SQL fallback to parameterized SQL in the given
// dialect, for display and logging.
func GenerateSQL(analysis models.Analysis, schema *models.Schema, d sqlutil.Dialect) (*sqlutil.CompiledQuery, error) {
	q := GenerateSQLQuery(analysis, schema)
	var tableSchema *models.Schema
	if q.Table != "" {
		for _, t := range schema.Tables {
			if t.Name == q.Table {
				tableSchema = &models.Schema{Columns: t.Columns}
			}
		}
	}
	return sqlutil.Compile(*q.Structured, q.Table, d, tableSchema)
}

func build(analysis models.Analysis, cols []models.SchemaColumn) models.StructuredQuery {
	var dates, numbers, categories []string
	for _, c := range cols {
		switch {
		case c.Type == models.ColumnDate:
			dates = append(dates, c.Name)
		case c.Type == models.ColumnNumber:
			numbers = append(numbers, c.Name)
		case c.Type.IsTextual():
			categories = append(categories, c.Name)
		}
	}

	q := models.StructuredQuery{Select: []string{"*"}, Limit: DefaultLimit}

	if analysis.Timeframe != "" {
		column := "year"
		if len(dates) > 0 {
			column = dates[0]
		}
		var value any = analysis.Timeframe
		if y, err := strconv.Atoi(analysis.Timeframe); err == nil {
			value = y
		}
		q.Filters = append(q.Filters, models.Filter{Column: column, Operator: models.OpYearEquals, Value: value})
	}

	switch analysis.QueryType {
	case models.QueryMetrics:
		q.Select = nil
		q.Aggregations = []models.Aggregation{{Function: models.AggCount}}
		if col := matchColumn(analysis.Entities, numbers); col != "" {
			q.Aggregations = append(q.Aggregations, models.Aggregation{Function: models.AggSum, Column: col})
		}
	case models.QueryDistribution:
		if len(categories) == 0 {
			break
		}
		group := matchColumn(analysis.Entities, categories)
		if group == "" {
			group = categories[0]
		}
		q.Select = nil
		q.GroupBy = []string{group}
		q.Aggregations = []models.Aggregation{{Function: models.AggCount}}
	case models.QueryTrend:
		if len(dates) == 0 {
			break
		}
		q.Select = nil
		q.GroupBy = []string{dates[0]}
		value := matchColumn(analysis.Entities, numbers)
		if value == "" {
			value = firstMeasure(numbers)
		}
		if value != "" {
			q.Aggregations = []models.Aggregation{{Function: models.AggSum, Column: value}}
		} else {
			q.Aggregations = []models.Aggregation{{Function: models.AggCount}}
		}
		q.OrderBy = &models.OrderBy{Column: dates[0], Direction: "asc"}
	}
	return q
}

func columnsOf(schema *models.Schema) []models.SchemaColumn {
	if schema == nil {
		return nil
	}
	if len(schema.Columns) > 0 || len(schema.Tables) == 0 {
		return schema.Columns
	}
	return schema.Tables[0].Columns
}

func pickTable(entities []string, tables []models.SchemaTable) models.SchemaTable {
	for _, e := range entities {
		for _, name := range entityTables[e] {
			for _, t := range tables {
				if sameNoun(t.Name, name) {
					return t
				}
			}
		}
	}
	return tables[0]
}

// matchColumn returns the first candidate column named after one of the
// entities, singular or plural. Key columns (id, *_id) never match.
func matchColumn(entities []string, candidates []string) string {
	for _, e := range entities {
		for _, name := range entityColumns[e] {
			singular := inflection.Singular(name)
			for _, c := range candidates {
				lc := strings.ToLower(c)
				if isKey(lc) {
					continue
				}
				if sameNoun(lc, name) || strings.Contains(lc, singular) {
					return c
				}
			}
		}
	}
	return ""
}

func firstMeasure(numbers []string) string {
	for _, n := range numbers {
		if !isKey(strings.ToLower(n)) {
			return n
		}
	}
	return ""
}

func isKey(column string) bool {
	return column == "id" || strings.HasSuffix(column, "_id")
}

func sameNoun(a, b string) bool {
	return inflection.Singular(strings.ToLower(a)) == inflection.Singular(strings.ToLower(b))
}
