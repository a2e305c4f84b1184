package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// parseSchemaTable splits [schema].[table] or schema.table, defaulting the
// schema when the name carries none.
func parseSchemaTable(defaultSchema, tableName string) (string, string) {
	cleaned := strings.ReplaceAll(tableName, "[", "")
	cleaned = strings.ReplaceAll(cleaned, "]", "")

	parts := strings.SplitN(cleaned, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, cleaned
}

func describeTable(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]models.SchemaColumn, error) {
	schemaName, tableName = parseSchemaTable(schemaName, tableName)
	const query = `
	SET NOCOUNT ON;
	SELECT c.name, tp.name, CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`
	rows, err := db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.SchemaColumn
	for rows.Next() {
		var name, dataType string
		var nullable int
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns = append(columns, models.SchemaColumn{
			Name:     name,
			Type:     mapType(dataType),
			Nullable: nullable == 1,
			Table:    tableName,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

func listTables(ctx context.Context, db *sql.DB, schemaName string) ([]models.SchemaTable, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT t.name, c.name, tp.name, CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END
	FROM sys.tables t
	INNER JOIN sys.columns c ON c.object_id = t.object_id
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	WHERE t.is_ms_shipped = 0
	  AND SCHEMA_NAME(t.schema_id) = @schema
	ORDER BY t.name, c.column_id
	`
	rows, err := db.QueryContext(ctx, query, sql.Named("schema", schemaName))
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []models.SchemaTable
	for rows.Next() {
		var table, name, dataType string
		var nullable int
		if err := rows.Scan(&table, &name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != table {
			tables = append(tables, models.SchemaTable{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, models.SchemaColumn{
			Name:     name,
			Type:     mapType(dataType),
			Nullable: nullable == 1,
			Table:    table,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

// mapType folds SQL Server type names into column types.
func mapType(sqlServerType string) models.ColumnType {
	switch strings.ToUpper(strings.TrimSpace(sqlServerType)) {
	case "TINYINT", "SMALLINT", "INT", "BIGINT",
		"DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY", "FLOAT", "REAL":
		return models.ColumnNumber
	case "DATE", "TIME", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET":
		return models.ColumnDate
	case "BIT":
		return models.ColumnBoolean
	}
	return models.ColumnString
}

// isDecimalType reports types the driver returns as []byte text.
func isDecimalType(sqlServerType string) bool {
	switch strings.ToUpper(sqlServerType) {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return true
	}
	return false
}
