package models

// ColumnType is the semantic type of a column after inference or catalog mapping.
type ColumnType string

const (
	ColumnString  ColumnType = "string"
	ColumnNumber  ColumnType = "number"
	ColumnDate    ColumnType = "date"
	ColumnBoolean ColumnType = "boolean"
	// ColumnText is reported by the spreadsheet adapter and treated as ColumnString.
	ColumnText ColumnType = "text"
)

// IsTextual reports whether the column holds free text.
func (t ColumnType) IsTextual() bool {
	return t == ColumnString || t == ColumnText
}

// SchemaColumn describes one column of a data source.
type SchemaColumn struct {
	Name         string     `json:"name" yaml:"name"`
	Type         ColumnType `json:"type" yaml:"type"`
	Nullable     bool       `json:"nullable,omitempty" yaml:"nullable"`
	Table        string     `json:"table,omitempty" yaml:"-"`
	SampleValues []any      `json:"sampleValues,omitempty" yaml:"-"`
}

// SchemaTable is a table listing entry used when a SQL source is described as a whole.
type SchemaTable struct {
	Name    string         `json:"name" yaml:"name"`
	Columns []SchemaColumn `json:"columns,omitempty" yaml:"columns"`
}

// Schema is derived per request and never persisted.
type Schema struct {
	Columns  []SchemaColumn `json:"columns"`
	Tables   []SchemaTable  `json:"tables,omitempty"`
	RowCount *int           `json:"rowCount,omitempty"`
}

// ColumnsOfType returns the names of columns with the given type, in schema order.
func (s *Schema) ColumnsOfType(t ColumnType) []string {
	if s == nil {
		return nil
	}
	var names []string
	for _, c := range s.Columns {
		if c.Type == t || (t == ColumnString && c.Type == ColumnText) {
			names = append(names, c.Name)
		}
	}
	return names
}

// IsEmpty reports whether the schema carries no columns and no tables.
func (s *Schema) IsEmpty() bool {
	return s == nil || (len(s.Columns) == 0 && len(s.Tables) == 0)
}
