package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/repositories"
)

// DefaultHistoryLimit caps List when the caller passes no limit.
const DefaultHistoryLimit = 50

// QueryDetail is a stored query with the visualizations built for it.
type QueryDetail struct {
	Query          *models.QueryRecord           `json:"query"`
	Visualizations []*models.VisualizationRecord `json:"visualizations"`
}

// QueryHistoryService reads back the queries a user has asked.
type QueryHistoryService interface {
	List(ctx context.Context, userID string, limit int) ([]*models.QueryRecord, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*QueryDetail, error)
}

type queryHistoryService struct {
	repo   repositories.QueryRepository
	logger *zap.Logger
}

func NewQueryHistoryService(repo repositories.QueryRepository, logger *zap.Logger) QueryHistoryService {
	return &queryHistoryService{
		repo:   repo,
		logger: logger.Named("query-history-service"),
	}
}

var _ QueryHistoryService = (*queryHistoryService)(nil)

func (s *queryHistoryService) List(ctx context.Context, userID string, limit int) ([]*models.QueryRecord, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	queries, err := s.repo.GetQueriesByUserID(ctx, userID, limit)
	if err != nil {
		s.logger.Error("Failed to list query history",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, err
	}
	return queries, nil
}

func (s *queryHistoryService) Get(ctx context.Context, userID string, id uuid.UUID) (*QueryDetail, error) {
	q, err := s.repo.GetQuery(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.UserID != userID {
		return nil, apperrors.ErrNotFound
	}

	vis, err := s.repo.GetVisualizationsByQueryID(ctx, id)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("load visualizations: %w", err)
	}
	if vis == nil {
		vis = []*models.VisualizationRecord{}
	}
	return &QueryDetail{Query: q, Visualizations: vis}, nil
}
