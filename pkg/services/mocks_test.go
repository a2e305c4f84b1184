package services

import (
	"context"
	"errors"
	"sync"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/repositories"
)

// mockAdapter is a configurable datasource.Adapter.
type mockAdapter struct {
	schema    *models.Schema
	schemaErr error
	result    *models.Result
	execErr   error
	valid     bool

	mu            sync.Mutex
	schemaCalls   int
	executeCalls  int
	validateCalls int
	lastQuery     models.Query
}

func (m *mockAdapter) GetSchema(ctx context.Context, cfg map[string]any) (*models.Schema, error) {
	m.mu.Lock()
	m.schemaCalls++
	m.mu.Unlock()
	if m.schemaErr != nil {
		return nil, m.schemaErr
	}
	return m.schema, nil
}

func (m *mockAdapter) ExecuteQuery(ctx context.Context, cfg map[string]any, q models.Query) (*models.Result, error) {
	m.mu.Lock()
	m.executeCalls++
	m.lastQuery = q
	m.mu.Unlock()
	if m.execErr != nil {
		return nil, m.execErr
	}
	return m.result, nil
}

func (m *mockAdapter) ValidateConnection(ctx context.Context, cfg map[string]any) bool {
	m.mu.Lock()
	m.validateCalls++
	m.mu.Unlock()
	return m.valid
}

// mockAdapterFactory serves fixed adapters by type.
type mockAdapterFactory struct {
	adapters map[models.DataSourceType]datasource.Adapter
}

func (f *mockAdapterFactory) Get(t models.DataSourceType) (datasource.Adapter, error) {
	if a, ok := f.adapters[t]; ok {
		return a, nil
	}
	return nil, apperrors.NewConfigurationError(string(t), "unsupported data source type", nil)
}

func (f *mockAdapterFactory) ListTypes() []datasource.AdapterInfo {
	out := []datasource.AdapterInfo{}
	for t := range f.adapters {
		out = append(out, datasource.AdapterInfo{Type: t, DisplayName: string(t)})
	}
	return out
}

func factoryOf(pairs map[models.DataSourceType]*mockAdapter) *mockAdapterFactory {
	f := &mockAdapterFactory{adapters: map[models.DataSourceType]datasource.Adapter{}}
	for t, a := range pairs {
		f.adapters[t] = a
	}
	return f
}

var errStorageDown = errors.New("storage unavailable")

// failingQueryStore stores everything except queries.
type failingQueryStore struct {
	*repositories.Store
}

func (s *failingQueryStore) CreateQuery(ctx context.Context, q *models.QueryRecord) error {
	return errStorageDown
}

var _ Storage = (*failingQueryStore)(nil)
