package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/retry"
)

const (
	DefaultPoolMaxConns = 10
	DefaultPoolMinConns = 1
	DefaultHealthCheck  = 5 * time.Second
)

// PoolManagerConfig holds pool sizing for every pool the manager creates.
type PoolManagerConfig struct {
	PoolMaxConns int32
	PoolMinConns int32
	// Retry governs pool creation; nil means retry.DefaultConfig().
	Retry *retry.Config
}

// PoolManager keeps one connection pool per distinct connection string and
// reuses it across calls. Pools live until Remove or Close.
type PoolManager struct {
	mu      sync.RWMutex
	pools   map[string]*managedPool
	cfg     PoolManagerConfig
	stopped bool
	logger  *zap.Logger
}

type managedPool struct {
	conn     PoolConnector
	lastUsed time.Time
	mu       sync.Mutex
}

// PoolCreator opens a new pool for a connection string.
type PoolCreator func(ctx context.Context) (PoolConnector, error)

// NewPoolManager creates a pool manager with the given configuration.
func NewPoolManager(cfg PoolManagerConfig, logger *zap.Logger) *PoolManager {
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolManager{
		pools:  make(map[string]*managedPool),
		cfg:    cfg,
		logger: logger.Named("pools"),
	}
}

// GetOrCreate returns the pool for key, creating it with create when absent
// or when the existing pool fails its health check.
func (m *PoolManager) GetOrCreate(ctx context.Context, key string, create PoolCreator) (PoolConnector, error) {
	m.mu.RLock()
	managed, exists := m.pools[key]
	stopped := m.stopped
	m.mu.RUnlock()

	if stopped {
		return nil, fmt.Errorf("pool manager is closed")
	}

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, DefaultHealthCheck)
		defer cancel()

		err := retry.Do(healthCtx, m.cfg.Retry, func() error {
			return managed.conn.Ping(healthCtx)
		})
		if err != nil {
			m.logger.Warn("pool unhealthy, recreating",
				zap.String("key", logging.SanitizeConnectionString(key)),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.Remove(key)
			return m.createPool(ctx, key, create)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.conn, nil
	}

	return m.createPool(ctx, key, create)
}

// createPool creates a new pool with retry logic.
// Caller must NOT hold any locks (this method acquires write lock).
func (m *PoolManager) createPool(ctx context.Context, key string, create PoolCreator) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("pool manager is closed")
	}

	// another goroutine may have created it while we waited for the lock
	if managed, exists := m.pools[key]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.conn, nil
	}

	conn, err := retry.DoWithResult(ctx, m.cfg.Retry, func() (PoolConnector, error) {
		return create(ctx)
	})
	if err != nil {
		m.logger.Error("failed to create pool after retries",
			zap.String("key", logging.SanitizeConnectionString(key)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create pool after retries: %w", err)
	}

	m.pools[key] = &managedPool{conn: conn, lastUsed: time.Now()}

	m.logger.Info("created new connection pool",
		zap.String("key", logging.SanitizeConnectionString(key)),
		zap.String("type", conn.GetType()),
		zap.Int("totalPools", len(m.pools)),
	)
	return conn, nil
}

// PostgresPool returns the shared pgx pool for connString.
func (m *PoolManager) PostgresPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	conn, err := m.GetOrCreate(ctx, connString, func(ctx context.Context) (PoolConnector, error) {
		poolConfig, err := pgxpool.ParseConfig(connString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}
		if m.cfg.PoolMaxConns > 0 {
			poolConfig.MaxConns = m.cfg.PoolMaxConns
		}
		if m.cfg.PoolMinConns > 0 && m.cfg.PoolMinConns <= poolConfig.MaxConns {
			poolConfig.MinConns = m.cfg.PoolMinConns
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, err
		}
		return NewPostgresPoolWrapper(pool), nil
	})
	if err != nil {
		return nil, err
	}
	return GetPostgresPool(conn)
}

// SQLDB returns the shared database/sql pool for driver and connString.
func (m *PoolManager) SQLDB(ctx context.Context, driver, connString string) (*sql.DB, error) {
	conn, err := m.GetOrCreate(ctx, driver+":"+connString, func(ctx context.Context) (PoolConnector, error) {
		db, err := sql.Open(driver, connString)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(int(m.cfg.PoolMaxConns))
		db.SetMaxIdleConns(int(m.cfg.PoolMinConns))
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewSQLDBWrapper(driver, db), nil
	})
	if err != nil {
		return nil, err
	}
	return GetSQLDB(conn)
}

// Remove closes and forgets the pool for key.
func (m *PoolManager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.pools[key]; exists && managed != nil {
		if err := managed.conn.Close(); err != nil {
			m.logger.Warn("error closing pool", zap.String("error", logging.SanitizeError(err)))
		}
		delete(m.pools, key)
		m.logger.Debug("removed pool", zap.String("key", logging.SanitizeConnectionString(key)))
	}
}

// Close closes every pool. Idempotent.
func (m *PoolManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true

	for _, managed := range m.pools {
		if managed != nil && managed.conn != nil {
			_ = managed.conn.Close()
		}
	}
	m.pools = make(map[string]*managedPool)
	m.logger.Info("pool manager closed")
	return nil
}

// PoolStats contains statistics about the pool manager state.
type PoolStats struct {
	TotalPools        int            `json:"total_pools"`
	PoolsByType       map[string]int `json:"pools_by_type"`
	OldestIdleSeconds int            `json:"oldest_idle_seconds"`
}

// Stats returns statistics about the pool manager. Safe to call concurrently.
func (m *PoolManager) Stats() PoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := PoolStats{
		TotalPools:  len(m.pools),
		PoolsByType: make(map[string]int),
	}
	for _, managed := range m.pools {
		managed.mu.Lock()
		stats.PoolsByType[managed.conn.GetType()]++
		if idle := int(now.Sub(managed.lastUsed).Seconds()); idle > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idle
		}
		managed.mu.Unlock()
	}
	return stats
}
