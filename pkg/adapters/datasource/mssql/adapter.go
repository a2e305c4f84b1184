// Package mssql serves Microsoft SQL Server databases as a data source.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"
	_ "github.com/microsoft/go-mssqldb/azuread" // registers the azuresql driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-insights/pkg/sql"
)

const sourceName = string(models.DataSourceSQLServer)

// Adapter provides SQL Server connectivity through shared database/sql pools.
type Adapter struct {
	pools  *datasource.PoolManager
	logger *zap.Logger
}

func NewAdapter(pools *datasource.PoolManager, logger *zap.Logger) *Adapter {
	return &Adapter{pools: pools, logger: logger.Named("mssql")}
}

func (a *Adapter) db(ctx context.Context, cfg *Config) (*sql.DB, error) {
	driver, dsn := driverAndDSN(cfg)
	db, err := a.pools.SQLDB(ctx, driver, dsn)
	if err != nil {
		return nil, apperrors.NewConnectionError(sourceName, "failed to connect", err)
	}
	return db, nil
}

// GetSchema describes the configured table, or lists the tables of the
// configured schema.
func (a *Adapter) GetSchema(ctx context.Context, raw map[string]any) (*models.Schema, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	db, err := a.db(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Table != "" {
		cols, err := describeTable(ctx, db, cfg.Schema, cfg.Table)
		if err != nil {
			return nil, apperrors.NewConnectionError(sourceName, "failed to describe table", err)
		}
		if len(cols) == 0 {
			return nil, apperrors.NewConfigurationError(sourceName, fmt.Sprintf("table %s not found", cfg.Table), nil)
		}
		return &models.Schema{Columns: cols}, nil
	}

	tables, err := listTables(ctx, db, cfg.Schema)
	if err != nil {
		return nil, apperrors.NewConnectionError(sourceName, "failed to list tables", err)
	}
	return &models.Schema{Columns: []models.SchemaColumn{}, Tables: tables}, nil
}

// ExecuteQuery runs validated literal SQL or a compiled structured query.
func (a *Adapter) ExecuteQuery(ctx context.Context, raw map[string]any, q models.Query) (*models.Result, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}

	table := cfg.Table
	if q.Table != "" {
		table = q.Table
	}

	var sq *models.StructuredQuery
	stmt := ""
	switch {
	case q.IsSQL():
		normalized, err := sqlutil.ValidateGeneratedSQL(q.SQL)
		if err != nil {
			return nil, err
		}
		stmt = boundStatement(normalized, datasource.MaxQueryLimit)
	case q.Structured != nil:
		if table == "" {
			return nil, apperrors.NewConfigurationError(sourceName, "structured queries need a table in the data source config", nil)
		}
		capped := *q.Structured
		if capped.Limit <= 0 || capped.Limit > datasource.MaxQueryLimit {
			capped.Limit = datasource.MaxQueryLimit
		}
		sq = &capped
	default:
		return nil, apperrors.NewConfigurationError(sourceName, "empty query", nil)
	}

	db, err := a.db(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var args []any
	if sq != nil {
		var schema *models.Schema
		for _, f := range sq.Filters {
			if f.Operator == models.OpYearEquals {
				if cols, err := describeTable(ctx, db, cfg.Schema, table); err == nil {
					schema = &models.Schema{Columns: cols}
				}
				break
			}
		}
		schemaName, tbl := parseSchemaTable(cfg.Schema, table)
		compiled, err := sqlutil.Compile(*sq, schemaName+"."+tbl, sqlutil.DialectSQLServer, schema)
		if err != nil {
			return nil, err
		}
		stmt = compiled.SQL
		for i, v := range compiled.Args {
			args = append(args, sql.Named("p"+strconv.Itoa(i+1), v))
		}
	}

	result, err := runQuery(ctx, db, stmt, args...)
	if err != nil {
		a.logger.Warn("query failed",
			zap.String("sql", logging.SanitizeQuery(stmt)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, apperrors.NewConnectionError(sourceName, "query failed", err)
	}
	return result, nil
}

// ValidateConnection pings the server and runs a trivial query.
func (a *Adapter) ValidateConnection(ctx context.Context, raw map[string]any) bool {
	return datasource.SafeValidate(ctx, a.logger, sourceName, func(ctx context.Context) error {
		cfg, err := FromMap(raw)
		if err != nil {
			return err
		}
		db, err := a.db(ctx, cfg)
		if err != nil {
			return err
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		var currentDB string
		if err := db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
			return fmt.Errorf("test query failed: %w", err)
		}
		if !strings.EqualFold(currentDB, cfg.Database) {
			return fmt.Errorf("connected to wrong database: expected %q but connected to %q", cfg.Database, currentDB)
		}
		return nil
	})
}

// boundStatement caps a statement at limit rows with TOP. SQL Server rejects
// ORDER BY inside a derived table, so ordered statements and statements that
// already carry TOP run unwrapped.
func boundStatement(stmt string, limit int) string {
	lowered := strings.ToLower(stmt)
	if strings.Contains(lowered, "order by") || strings.Contains(lowered, " top ") || strings.Contains(lowered, " top(") {
		return stmt
	}
	return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", limit, stmt)
}

func runQuery(ctx context.Context, db *sql.DB, stmt string, args ...any) (*models.Result, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	records := make([]models.Record, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := make(models.Record, len(columnNames))
		for i, col := range columnNames {
			rec[col] = normalizeValue(values[i], columnTypes[i].DatabaseTypeName())
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return &models.Result{Columns: columnNames, Records: records}, nil
}

func normalizeValue(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return datasource.NormalizeValue(v)
	}
	switch {
	case isDecimalType(dbType):
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	case strings.EqualFold(dbType, "UNIQUEIDENTIFIER"):
		var id mssqldb.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return id.String()
		}
	}
	return string(b)
}

var _ datasource.Adapter = (*Adapter)(nil)
