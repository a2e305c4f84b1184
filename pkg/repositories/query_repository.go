package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/database"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// QueryRepository provides data access for processed queries and the
// visualizations built from them. Both are append-only.
type QueryRepository interface {
	CreateQuery(ctx context.Context, q *models.QueryRecord) error
	GetQuery(ctx context.Context, id uuid.UUID) (*models.QueryRecord, error)
	// GetQueriesByUserID lists a user's queries, newest first. limit <= 0 means no limit.
	GetQueriesByUserID(ctx context.Context, userID string, limit int) ([]*models.QueryRecord, error)

	CreateVisualization(ctx context.Context, v *models.VisualizationRecord) error
	GetVisualizationsByQueryID(ctx context.Context, queryID uuid.UUID) ([]*models.VisualizationRecord, error)
}

type queryRepository struct {
	db *database.DB
}

// NewQueryRepository creates a PostgreSQL-backed QueryRepository.
func NewQueryRepository(db *database.DB) QueryRepository {
	return &queryRepository{db: db}
}

var _ QueryRepository = (*queryRepository)(nil)

const queryColumns = `id, user_id, conversation_id, data_source_id, natural_query, generated_query,
	analysis, result_count, execution_ms, metadata, created_at`

func (r *queryRepository) CreateQuery(ctx context.Context, q *models.QueryRecord) error {
	generated, err := json.Marshal(q.GeneratedQuery)
	if err != nil {
		return fmt.Errorf("failed to encode generated query: %w", err)
	}
	analysis, err := marshalOptional(q.Analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	metadata, err := marshalOptional(q.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode query metadata: %w", err)
	}
	q.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO queries (user_id, conversation_id, data_source_id, natural_query, generated_query,
			analysis, result_count, execution_ms, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		q.UserID,
		q.ConversationID,
		q.DataSourceID,
		q.NaturalQuery,
		generated,
		analysis,
		q.ResultCount,
		q.ExecutionTime.Milliseconds(),
		metadata,
		q.CreatedAt,
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}
	return nil
}

func (r *queryRepository) GetQuery(ctx context.Context, id uuid.UUID) (*models.QueryRecord, error) {
	query := `SELECT ` + queryColumns + ` FROM queries WHERE id = $1`

	q, err := scanQuery(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get query: %w", err)
	}
	return q, nil
}

func (r *queryRepository) GetQueriesByUserID(ctx context.Context, userID string, limit int) ([]*models.QueryRecord, error) {
	query := `SELECT ` + queryColumns + ` FROM queries WHERE user_id = $1 ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	out := []*models.QueryRecord{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queries: %w", err)
	}
	return out, nil
}

func (r *queryRepository) CreateVisualization(ctx context.Context, v *models.VisualizationRecord) error {
	config, err := json.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("failed to encode chart config: %w", err)
	}
	data := v.Data
	if data == nil {
		data = []models.Record{}
	}
	rows, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode chart data: %w", err)
	}
	v.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO visualizations (query_id, chart_type, config, data, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err = r.db.QueryRow(ctx, query, v.QueryID, v.ChartType, config, rows, v.Title, v.CreatedAt).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to create visualization: %w", err)
	}
	return nil
}

func (r *queryRepository) GetVisualizationsByQueryID(ctx context.Context, queryID uuid.UUID) ([]*models.VisualizationRecord, error) {
	query := `
		SELECT id, query_id, chart_type, config, data, title, created_at
		FROM visualizations
		WHERE query_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visualizations: %w", err)
	}
	defer rows.Close()

	out := []*models.VisualizationRecord{}
	for rows.Next() {
		var v models.VisualizationRecord
		var config, data []byte
		if err := rows.Scan(&v.ID, &v.QueryID, &v.ChartType, &config, &data, &v.Title, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visualization: %w", err)
		}
		if err := json.Unmarshal(config, &v.Config); err != nil {
			return nil, fmt.Errorf("failed to decode chart config: %w", err)
		}
		if err := json.Unmarshal(data, &v.Data); err != nil {
			return nil, fmt.Errorf("failed to decode chart data: %w", err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visualizations: %w", err)
	}
	return out, nil
}

func scanQuery(row pgx.Row) (*models.QueryRecord, error) {
	var q models.QueryRecord
	var generated, analysis, metadata []byte
	var executionMS int64
	err := row.Scan(
		&q.ID,
		&q.UserID,
		&q.ConversationID,
		&q.DataSourceID,
		&q.NaturalQuery,
		&generated,
		&analysis,
		&q.ResultCount,
		&executionMS,
		&metadata,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.ExecutionTime = time.Duration(executionMS) * time.Millisecond

	if err := json.Unmarshal(generated, &q.GeneratedQuery); err != nil {
		return nil, fmt.Errorf("failed to decode generated query: %w", err)
	}
	if len(analysis) > 0 {
		q.Analysis = &models.Analysis{}
		if err := json.Unmarshal(analysis, q.Analysis); err != nil {
			return nil, fmt.Errorf("failed to decode analysis: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &q.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode query metadata: %w", err)
		}
	}
	return &q, nil
}

// marshalOptional encodes v, mapping nil pointers and maps to SQL NULL.
func marshalOptional[T any](v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}
