package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/database"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// DataSourceRepository defines data access for user data sources.
// Config is stored as JSONB and handed back as an opaque map.
type DataSourceRepository interface {
	// CreateDataSource inserts ds and fills in its ID and timestamps.
	// Returns apperrors.ErrConflict when the user already has a source with that name.
	CreateDataSource(ctx context.Context, ds *models.DataSource) error

	// GetDataSource returns apperrors.ErrNotFound for unknown ids.
	GetDataSource(ctx context.Context, id uuid.UUID) (*models.DataSource, error)

	// GetDataSourcesByUserID lists a user's sources, oldest first.
	GetDataSourcesByUserID(ctx context.Context, userID string) ([]*models.DataSource, error)

	// ListActiveDataSources lists active sources across all users.
	ListActiveDataSources(ctx context.Context) ([]*models.DataSource, error)

	UpdateDataSource(ctx context.Context, ds *models.DataSource) error
	DeleteDataSource(ctx context.Context, id uuid.UUID) error

	// MarkDataSourceSynced records a successful connection check.
	MarkDataSourceSynced(ctx context.Context, id uuid.UUID, at time.Time) error
}

type dataSourceRepository struct {
	db *database.DB
}

// NewDataSourceRepository creates a PostgreSQL-backed DataSourceRepository.
func NewDataSourceRepository(db *database.DB) DataSourceRepository {
	return &dataSourceRepository{db: db}
}

const dataSourceColumns = `id, user_id, name, source_type, config, is_active, last_sync_at, created_at, updated_at`

func (r *dataSourceRepository) CreateDataSource(ctx context.Context, ds *models.DataSource) error {
	config, err := marshalConfig(ds.Config)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	query := `
		INSERT INTO data_sources (user_id, name, source_type, config, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		ds.UserID,
		ds.Name,
		ds.Type,
		config,
		ds.IsActive,
		ds.CreatedAt,
		ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		// unique (user_id, name)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create data source: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) GetDataSource(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE id = $1`

	ds, err := scanDataSource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}
	return ds, nil
}

func (r *dataSourceRepository) GetDataSourcesByUserID(ctx context.Context, userID string) ([]*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE user_id = $1 ORDER BY created_at, id`
	return r.list(ctx, query, userID)
}

func (r *dataSourceRepository) ListActiveDataSources(ctx context.Context) ([]*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE is_active ORDER BY created_at, id`
	return r.list(ctx, query)
}

func (r *dataSourceRepository) list(ctx context.Context, query string, args ...any) ([]*models.DataSource, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	sources := []*models.DataSource{}
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		sources = append(sources, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data sources: %w", err)
	}
	return sources, nil
}

func (r *dataSourceRepository) UpdateDataSource(ctx context.Context, ds *models.DataSource) error {
	config, err := marshalConfig(ds.Config)
	if err != nil {
		return err
	}
	ds.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE data_sources
		SET name = $2, source_type = $3, config = $4, is_active = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, ds.ID, ds.Name, ds.Type, config, ds.IsActive, ds.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update data source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *dataSourceRepository) DeleteDataSource(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM data_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete data source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *dataSourceRepository) MarkDataSourceSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.Exec(ctx, `UPDATE data_sources SET last_sync_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark data source synced: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanDataSource(row pgx.Row) (*models.DataSource, error) {
	var ds models.DataSource
	var config []byte
	err := row.Scan(
		&ds.ID,
		&ds.UserID,
		&ds.Name,
		&ds.Type,
		&config,
		&ds.IsActive,
		&ds.LastSyncAt,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &ds.Config); err != nil {
			return nil, fmt.Errorf("failed to decode data source config: %w", err)
		}
	}
	if ds.Config == nil {
		ds.Config = map[string]any{}
	}
	return &ds, nil
}

func marshalConfig(config map[string]any) ([]byte, error) {
	if config == nil {
		config = map[string]any{}
	}
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data source config: %w", err)
	}
	return data, nil
}
