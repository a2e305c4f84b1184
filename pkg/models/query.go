package models

import (
	"time"

	"github.com/google/uuid"
)

// FilterOperator names a predicate applied by the structured query executor.
type FilterOperator string

const (
	OpEquals       FilterOperator = "equals"
	OpContains     FilterOperator = "contains"
	OpGreaterThan  FilterOperator = "greater_than"
	OpLessThan     FilterOperator = "less_than"
	OpGreaterEqual FilterOperator = "greater_equal"
	OpLessEqual    FilterOperator = "less_equal"
	OpStartsWith   FilterOperator = "starts_with"
	OpEndsWith     FilterOperator = "ends_with"
	OpDateAfter    FilterOperator = "date_after"
	OpDateBefore   FilterOperator = "date_before"
	OpDateEquals   FilterOperator = "date_equals"
	OpYearEquals   FilterOperator = "year_equals"
)

// AggregateFunc names an aggregation over a group.
type AggregateFunc string

const (
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggCount AggregateFunc = "count"
	AggMax   AggregateFunc = "max"
	AggMin   AggregateFunc = "min"
)

type Filter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

type Aggregation struct {
	Function AggregateFunc `json:"function"`
	Column   string        `json:"column,omitempty"`
	Alias    string        `json:"alias,omitempty"`
}

// OutputName is the record key the aggregation result is stored under.
func (a Aggregation) OutputName() string {
	if a.Alias != "" {
		return a.Alias
	}
	if a.Column == "" || a.Column == "*" {
		return string(a.Function)
	}
	return string(a.Function) + "_" + a.Column
}

type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"` // "asc" (default) or "desc"
}

// Descending reports whether the order is descending.
func (o OrderBy) Descending() bool {
	return o.Direction == "desc" || o.Direction == "DESC"
}

// StructuredQuery is the backend-neutral query form used by CSV and API sources,
// and compiled to SQL for SQL sources.
type StructuredQuery struct {
	Select       []string      `json:"select,omitempty"`
	Filters      []Filter      `json:"filters,omitempty"`
	GroupBy      []string      `json:"groupBy,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	OrderBy      *OrderBy      `json:"orderBy,omitempty"`
	Limit        int           `json:"limit,omitempty"`
}

// Query is what an adapter executes: exactly one of SQL or Structured is set.
// Table names the target of a structured query on SQL sources that list
// several tables; when empty the source's configured table is used.
type Query struct {
	SQL        string           `json:"sql,omitempty"`
	Structured *StructuredQuery `json:"structured,omitempty"`
	Table      string           `json:"table,omitempty"`
}

// SQLQuery wraps literal SQL text.
func SQLQuery(sql string) Query { return Query{SQL: sql} }

// StructuredOf wraps a structured query.
func StructuredOf(q StructuredQuery) Query { return Query{Structured: &q} }

// IsSQL reports whether the query carries literal SQL.
func (q Query) IsSQL() bool { return q.SQL != "" }

// IsEmpty reports whether neither form is set.
func (q Query) IsEmpty() bool { return q.SQL == "" && q.Structured == nil }

// Record is one result row keyed by column name.
type Record = map[string]any

// Result is the uniform output of every adapter. Columns preserves the
// source column order, which map iteration cannot.
type Result struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// RowCount returns the number of records.
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

// QueryRecord is the persisted form of a processed natural-language query.
type QueryRecord struct {
	ID             uuid.UUID      `json:"id"`
	UserID         string         `json:"userId"`
	ConversationID string         `json:"conversationId"`
	DataSourceID   *uuid.UUID     `json:"dataSourceId,omitempty"`
	NaturalQuery   string         `json:"naturalQuery"`
	GeneratedQuery Query          `json:"generatedQuery"`
	Analysis       *Analysis      `json:"analysis,omitempty"`
	ResultCount    int            `json:"resultCount"`
	ExecutionTime  time.Duration  `json:"executionTime"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
