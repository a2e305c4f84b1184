// Package postgres serves PostgreSQL databases as a data source.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-insights/pkg/sql"
)

const sourceName = string(models.DataSourcePostgreSQL)

// Adapter provides PostgreSQL connectivity. Pools are owned by the shared
// PoolManager; the adapter itself holds no connection state.
type Adapter struct {
	pools  *datasource.PoolManager
	logger *zap.Logger
}

func NewAdapter(pools *datasource.PoolManager, logger *zap.Logger) *Adapter {
	return &Adapter{pools: pools, logger: logger.Named("postgres")}
}

func (a *Adapter) pool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	pool, err := a.pools.PostgresPool(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, apperrors.NewConnectionError(sourceName, "failed to connect", err)
	}
	return pool, nil
}

// GetSchema describes the configured table, or lists every table of the
// configured schema when no table is named.
func (a *Adapter) GetSchema(ctx context.Context, raw map[string]any) (*models.Schema, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	pool, err := a.pool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Table != "" {
		cols, err := describeTable(ctx, pool, cfg.Schema, cfg.Table)
		if err != nil {
			return nil, apperrors.NewConnectionError(sourceName, "failed to describe table", err)
		}
		if len(cols) == 0 {
			return nil, apperrors.NewConfigurationError(sourceName, fmt.Sprintf("table %s.%s not found", cfg.Schema, cfg.Table), nil)
		}
		return &models.Schema{Columns: cols}, nil
	}

	tables, err := listTables(ctx, pool, cfg.Schema)
	if err != nil {
		return nil, apperrors.NewConnectionError(sourceName, "failed to list tables", err)
	}
	return &models.Schema{Columns: []models.SchemaColumn{}, Tables: tables}, nil
}

// ExecuteQuery runs literal SQL after validation, or compiles a structured
// query against the configured table. Results are capped at MaxQueryLimit.
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
		stmt = wrapLimit(normalized, datasource.MaxQueryLimit)
	case q.Structured != nil:
		if table == "" {
			return nil, apperrors.NewConfigurationError(sourceName, "structured queries need a table in the data source config", nil)
		}
		capped := capLimit(*q.Structured)
		sq = &capped
	default:
		return nil, apperrors.NewConfigurationError(sourceName, "empty query", nil)
	}

	pool, err := a.pool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var args []any
	if sq != nil {
		var schema *models.Schema
		if needsSchema(*sq) {
			if cols, err := describeTable(ctx, pool, cfg.Schema, table); err == nil {
				schema = &models.Schema{Columns: cols}
			}
		}
		compiled, err := sqlutil.Compile(*sq, tableRef(cfg.Schema, table), sqlutil.DialectPostgres, schema)
		if err != nil {
			return nil, err
		}
		stmt, args = compiled.SQL, compiled.Args
	}

	result, err := runQuery(ctx, pool, stmt, args...)
	if err != nil {
		a.logger.Warn("query failed",
			zap.String("sql", logging.SanitizeQuery(stmt)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, apperrors.NewConnectionError(sourceName, "query failed", err)
	}
	return result, nil
}

// ValidateConnection verifies the database is reachable with valid
// credentials and that the server put us in the database we asked for.
func (a *Adapter) ValidateConnection(ctx context.Context, raw map[string]any) bool {
	return datasource.SafeValidate(ctx, a.logger, sourceName, func(ctx context.Context) error {
		cfg, err := FromMap(raw)
		if err != nil {
			return err
		}
		pool, err := a.pool(ctx, cfg)
		if err != nil {
			return err
		}
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}

		var currentDB string
		if err := pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
			return fmt.Errorf("test query failed: %w", err)
		}
		// database names are case-sensitive in PostgreSQL, but a case mismatch
		// is almost always a config typo rather than a second database
		if cfg.Database != "" && !strings.EqualFold(currentDB, cfg.Database) {
			return fmt.Errorf("connected to wrong database: expected %q but connected to %q", cfg.Database, currentDB)
		}
		return nil
	})
}

func wrapLimit(stmt string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", stmt, limit)
}

func capLimit(sq models.StructuredQuery) models.StructuredQuery {
	if sq.Limit <= 0 || sq.Limit > datasource.MaxQueryLimit {
		sq.Limit = datasource.MaxQueryLimit
	}
	return sq
}

func needsSchema(sq models.StructuredQuery) bool {
	for _, f := range sq.Filters {
		if f.Operator == models.OpYearEquals {
			return true
		}
	}
	return false
}

// tableRef returns the unquoted schema.table reference Compile expects. A
// table already given as "schema.table" keeps its own schema.
func tableRef(schemaName, tableName string) string {
	if strings.Contains(tableName, ".") || schemaName == "" {
		return tableName
	}
	return schemaName + "." + tableName
}

func runQuery(ctx context.Context, pool *pgxpool.Pool, stmt string, args ...any) (*models.Result, error) {
	rows, err := pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	records := make([]models.Record, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		rec := make(models.Record, len(columns))
		for i, col := range columns {
			rec[col] = normalizeValue(values[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return &models.Result{Columns: columns, Records: records}, nil
}

func normalizeValue(v any) any {
	if n, ok := v.(pgtype.Numeric); ok {
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return datasource.NormalizeValue(v)
}

var _ datasource.Adapter = (*Adapter)(nil)
