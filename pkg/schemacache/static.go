package schemacache

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

//go:embed northwind.yaml
var northwindYAML []byte

var (
	staticOnce   sync.Once
	staticSchema *models.Schema
	staticErr    error
)

// StaticSchema returns the embedded Northwind reference schema. Callers get
// their own copy and may modify it.
func StaticSchema() *models.Schema {
	staticOnce.Do(func() {
		staticSchema, staticErr = parseStatic(northwindYAML)
	})
	if staticErr != nil {
		// the embedded file is covered by tests; an empty schema keeps Get total
		return &models.Schema{Columns: []models.SchemaColumn{}}
	}
	return cloneSchema(staticSchema)
}

func parseStatic(data []byte) (*models.Schema, error) {
	var doc struct {
		Tables []models.SchemaTable `yaml:"tables"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse reference schema: %w", err)
	}

	schema := &models.Schema{Tables: doc.Tables}
	for ti := range schema.Tables {
		t := &schema.Tables[ti]
		for ci := range t.Columns {
			t.Columns[ci].Table = t.Name
			schema.Columns = append(schema.Columns, t.Columns[ci])
		}
	}
	return schema, nil
}

func cloneSchema(s *models.Schema) *models.Schema {
	out := &models.Schema{
		Columns: append([]models.SchemaColumn(nil), s.Columns...),
		Tables:  make([]models.SchemaTable, len(s.Tables)),
	}
	for i, t := range s.Tables {
		out.Tables[i] = models.SchemaTable{Name: t.Name, Columns: append([]models.SchemaColumn(nil), t.Columns...)}
	}
	if s.RowCount != nil {
		n := *s.RowCount
		out.RowCount = &n
	}
	return out
}
