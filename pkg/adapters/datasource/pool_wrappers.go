package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConnector abstracts connection pool operations across pgx and
// database/sql pools.
type PoolConnector interface {
	Ping(ctx context.Context) error
	Close() error
	// GetType returns the database type for logging/stats
	GetType() string
}

// PostgresPoolWrapper wraps *pgxpool.Pool to implement PoolConnector
type PostgresPoolWrapper struct {
	pool *pgxpool.Pool
}

func NewPostgresPoolWrapper(pool *pgxpool.Pool) *PostgresPoolWrapper {
	return &PostgresPoolWrapper{pool: pool}
}

func (w *PostgresPoolWrapper) Ping(ctx context.Context) error { return w.pool.Ping(ctx) }

func (w *PostgresPoolWrapper) Close() error {
	w.pool.Close()
	return nil
}

func (w *PostgresPoolWrapper) GetType() string { return "postgres" }

// SQLDBWrapper wraps a database/sql pool (SQL Server) to implement PoolConnector.
type SQLDBWrapper struct {
	driver string
	db     *sql.DB
}

func NewSQLDBWrapper(driver string, db *sql.DB) *SQLDBWrapper {
	return &SQLDBWrapper{driver: driver, db: db}
}

func (w *SQLDBWrapper) Ping(ctx context.Context) error { return w.db.PingContext(ctx) }

func (w *SQLDBWrapper) Close() error { return w.db.Close() }

func (w *SQLDBWrapper) GetType() string { return w.driver }

// GetPostgresPool extracts the underlying *pgxpool.Pool from a PoolConnector.
func GetPostgresPool(connector PoolConnector) (*pgxpool.Pool, error) {
	wrapper, ok := connector.(*PostgresPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a PostgreSQL pool wrapper")
	}
	return wrapper.pool, nil
}

// GetSQLDB extracts the underlying *sql.DB from a PoolConnector.
func GetSQLDB(connector PoolConnector) (*sql.DB, error) {
	wrapper, ok := connector.(*SQLDBWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a database/sql pool wrapper")
	}
	return wrapper.db, nil
}
