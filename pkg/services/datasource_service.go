package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/schemacache"
)

// ConnectFailedMessage is returned when a new source cannot be reached.
const ConnectFailedMessage = "Could not connect to data source. Please check your configuration."

// CreateDataSourceRequest describes a new data source. IsActive defaults to true.
type CreateDataSourceRequest struct {
	Name     string                `json:"name" validate:"required,max=255"`
	Type     models.DataSourceType `json:"type" validate:"required"`
	Config   map[string]any        `json:"config"`
	IsActive *bool                 `json:"isActive,omitempty"`
}

// UpdateDataSourceRequest changes a data source. Nil fields are left alone.
type UpdateDataSourceRequest struct {
	Name     *string        `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Config   map[string]any `json:"config,omitempty"`
	IsActive *bool          `json:"isActive,omitempty"`
}

// DataSourceService manages a user's data sources. Sources owned by another
// user are reported as apperrors.ErrNotFound.
type DataSourceService interface {
	// Create validates the connection and stores the source.
	Create(ctx context.Context, userID string, req *CreateDataSourceRequest) (*models.DataSource, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.DataSource, error)
	List(ctx context.Context, userID string) ([]*models.DataSource, error)
	// Update revalidates the connection when the config changes.
	Update(ctx context.Context, userID string, id uuid.UUID, req *UpdateDataSourceRequest) (*models.DataSource, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error

	// GetSchema describes the source. SQL sources are served from the schema cache.
	GetSchema(ctx context.Context, userID string, id uuid.UUID) (*models.Schema, error)

	// TestConnection reports whether a config reaches its backend without saving it.
	TestConnection(ctx context.Context, dsType models.DataSourceType, config map[string]any) (bool, error)

	// ListTypes returns the adapters compiled into this binary.
	ListTypes() []datasource.AdapterInfo
}

type dataSourceService struct {
	store    Storage
	adapters datasource.AdapterFactory
	schemas  *schemacache.Cache
	logger   *zap.Logger
}

// NewDataSourceService creates a data source service.
func NewDataSourceService(
	store Storage,
	adapters datasource.AdapterFactory,
	schemas *schemacache.Cache,
	logger *zap.Logger,
) DataSourceService {
	return &dataSourceService{
		store:    store,
		adapters: adapters,
		schemas:  schemas,
		logger:   logger.Named("datasources"),
	}
}

var _ DataSourceService = (*dataSourceService)(nil)

func (s *dataSourceService) Create(ctx context.Context, userID string, req *CreateDataSourceRequest) (*models.DataSource, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("required", "name", "data source name is required")
	}
	if req.Config == nil {
		req.Config = map[string]any{}
	}

	ok, err := s.TestConnection(ctx, req.Type, req.Config)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewConfigurationError(name, ConnectFailedMessage, nil)
	}

	ds := &models.DataSource{
		UserID:   userID,
		Name:     name,
		Type:     req.Type,
		Config:   req.Config,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := s.store.CreateDataSource(ctx, ds); err != nil {
		return nil, err
	}

	s.logger.Info("Created data source",
		zap.String("id", ds.ID.String()),
		zap.String("user_id", userID),
		zap.String("type", string(ds.Type)),
	)
	return ds, nil
}

func (s *dataSourceService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.DataSource, error) {
	ds, err := s.store.GetDataSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return ds, nil
}

func (s *dataSourceService) List(ctx context.Context, userID string) ([]*models.DataSource, error) {
	return s.store.GetDataSourcesByUserID(ctx, userID)
}

func (s *dataSourceService) Update(ctx context.Context, userID string, id uuid.UUID, req *UpdateDataSourceRequest) (*models.DataSource, error) {
	ds, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("required", "name", "data source name is required")
		}
		ds.Name = name
	}
	if req.IsActive != nil {
		ds.IsActive = *req.IsActive
	}
	if req.Config != nil {
		ok, err := s.TestConnection(ctx, ds.Type, req.Config)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.NewConfigurationError(ds.Name, ConnectFailedMessage, nil)
		}
		ds.Config = req.Config
	}

	if err := s.store.UpdateDataSource(ctx, ds); err != nil {
		return nil, err
	}
	s.schemas.Invalidate(ds.ID.String())

	s.logger.Info("Updated data source", zap.String("id", ds.ID.String()))
	return ds, nil
}

func (s *dataSourceService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteDataSource(ctx, id); err != nil {
		return err
	}
	s.schemas.Invalidate(id.String())

	s.logger.Info("Deleted data source", zap.String("id", id.String()))
	return nil
}

func (s *dataSourceService) GetSchema(ctx context.Context, userID string, id uuid.UUID) (*models.Schema, error) {
	ds, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.Get(ds.Type)
	if err != nil {
		return nil, err
	}

	if ds.Type.IsSQL() {
		schema, _ := s.schemas.Get(ctx, ds.ID.String(), func(ctx context.Context) (*models.Schema, error) {
			return adapter.GetSchema(ctx, ds.Config)
		})
		return schema, nil
	}

	schema, err := adapter.GetSchema(ctx, ds.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to describe data source: %w", err)
	}
	return schema, nil
}

func (s *dataSourceService) TestConnection(ctx context.Context, dsType models.DataSourceType, config map[string]any) (bool, error) {
	if !dsType.Valid() {
		return false, apperrors.NewValidationError("oneof", "type", fmt.Sprintf("unknown data source type %q", dsType))
	}
	adapter, err := s.adapters.Get(dsType)
	if err != nil {
		return false, err
	}
	return adapter.ValidateConnection(ctx, config), nil
}

func (s *dataSourceService) ListTypes() []datasource.AdapterInfo {
	return s.adapters.ListTypes()
}
