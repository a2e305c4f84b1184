package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// describeTable returns the columns of one table in ordinal order.
func describeTable(ctx context.Context, pool *pgxpool.Pool, schemaName, tableName string) ([]models.SchemaColumn, error) {
	if i := strings.Index(tableName, "."); i > 0 {
		schemaName, tableName = tableName[:i], tableName[i+1:]
	}
	const query = `
		SELECT c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`
	rows, err := pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.SchemaColumn
	for rows.Next() {
		var name, dataType string
		var nullable bool
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, models.SchemaColumn{
			Name:     name,
			Type:     mapType(dataType),
			Nullable: nullable,
			Table:    tableName,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// listTables returns every base table of a schema with its columns.
func listTables(ctx context.Context, pool *pgxpool.Pool, schemaName string) ([]models.SchemaTable, error) {
	const query = `
		SELECT t.table_name, c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.tables t
		JOIN information_schema.columns c
		  ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema = $1
		ORDER BY t.table_name, c.ordinal_position
	`
	rows, err := pool.Query(ctx, query, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []models.SchemaTable
	for rows.Next() {
		var table, name, dataType string
		var nullable bool
		if err := rows.Scan(&table, &name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != table {
			tables = append(tables, models.SchemaTable{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, models.SchemaColumn{
			Name:     name,
			Type:     mapType(dataType),
			Nullable: nullable,
			Table:    table,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// mapType folds information_schema data_type names into column types.
// Anything unrecognized is a string.
func mapType(dataType string) models.ColumnType {
	t := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case t == "boolean" || t == "bool":
		return models.ColumnBoolean
	case t == "date" || strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "time"):
		return models.ColumnDate
	}
	switch t {
	case "smallint", "integer", "bigint", "int", "int2", "int4", "int8",
		"decimal", "numeric", "real", "double precision", "float4", "float8",
		"money", "serial", "bigserial", "smallserial":
		return models.ColumnNumber
	}
	return models.ColumnString
}
