package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// mockDataSourceService serves a fixed set of sources and records calls.
type mockDataSourceService struct {
	sources   []*models.DataSource
	schema    *models.Schema
	createErr error
	getErr    error
	testOK    bool
	testErr   error

	lastUserID string
	lastCreate *services.CreateDataSourceRequest
	lastUpdate *services.UpdateDataSourceRequest
	deleted    []uuid.UUID
}

var _ services.DataSourceService = (*mockDataSourceService)(nil)

func (m *mockDataSourceService) Create(ctx context.Context, userID string, req *services.CreateDataSourceRequest) (*models.DataSource, error) {
	m.lastUserID = userID
	m.lastCreate = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.DataSource{ID: uuid.New(), UserID: userID, Name: req.Name, Type: req.Type, Config: req.Config, IsActive: true}, nil
}

func (m *mockDataSourceService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.DataSource, error) {
	m.lastUserID = userID
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, ds := range m.sources {
		if ds.ID == id && ds.UserID == userID {
			return ds, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDataSourceService) List(ctx context.Context, userID string) ([]*models.DataSource, error) {
	m.lastUserID = userID
	out := []*models.DataSource{}
	for _, ds := range m.sources {
		if ds.UserID == userID {
			out = append(out, ds)
		}
	}
	return out, nil
}

func (m *mockDataSourceService) Update(ctx context.Context, userID string, id uuid.UUID, req *services.UpdateDataSourceRequest) (*models.DataSource, error) {
	m.lastUpdate = req
	ds, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		ds.Name = *req.Name
	}
	return ds, nil
}

func (m *mockDataSourceService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := m.Get(ctx, userID, id); err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDataSourceService) GetSchema(ctx context.Context, userID string, id uuid.UUID) (*models.Schema, error) {
	if _, err := m.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return m.schema, nil
}

func (m *mockDataSourceService) TestConnection(ctx context.Context, dsType models.DataSourceType, config map[string]any) (bool, error) {
	return m.testOK, m.testErr
}

func (m *mockDataSourceService) ListTypes() []datasource.AdapterInfo {
	return []datasource.AdapterInfo{{Type: models.DataSourceCSV, DisplayName: "CSV"}}
}

// mockConversationService keeps conversations in a map.
type mockConversationService struct {
	convs   map[uuid.UUID]*models.Conversation
	msgs    map[uuid.UUID][]*models.Message
	chat    *services.ChatResponse
	chatErr error

	lastChat  services.ChatRequest
	chatCalls int
}

var _ services.ConversationService = (*mockConversationService)(nil)

func newMockConversationService() *mockConversationService {
	return &mockConversationService{
		convs: map[uuid.UUID]*models.Conversation{},
		msgs:  map[uuid.UUID][]*models.Message{},
	}
}

func (m *mockConversationService) add(userID, title string) *models.Conversation {
	c := &models.Conversation{ID: uuid.New(), UserID: userID, Title: title}
	m.convs[c.ID] = c
	return c
}

func (m *mockConversationService) Create(ctx context.Context, userID, title string) (*models.Conversation, error) {
	if title == "" {
		title = "Analytics Discussion"
	}
	return m.add(userID, title), nil
}

func (m *mockConversationService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Conversation, error) {
	c, ok := m.convs[id]
	if !ok || c.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (m *mockConversationService) List(ctx context.Context, userID string) ([]*models.Conversation, error) {
	out := []*models.Conversation{}
	for _, c := range m.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockConversationService) Messages(ctx context.Context, userID string, id uuid.UUID) ([]*models.Message, error) {
	if _, err := m.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	out := m.msgs[id]
	if out == nil {
		out = []*models.Message{}
	}
	return out, nil
}

func (m *mockConversationService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := m.Get(ctx, userID, id); err != nil {
		return err
	}
	delete(m.convs, id)
	return nil
}

func (m *mockConversationService) Chat(ctx context.Context, req services.ChatRequest) (*services.ChatResponse, error) {
	m.chatCalls++
	m.lastChat = req
	return m.chat, m.chatErr
}

// mockHistoryService returns fixed history.
type mockHistoryService struct {
	queries   []*models.QueryRecord
	detail    *services.QueryDetail
	lastLimit int
}

var _ services.QueryHistoryService = (*mockHistoryService)(nil)

func (m *mockHistoryService) List(ctx context.Context, userID string, limit int) ([]*models.QueryRecord, error) {
	m.lastLimit = limit
	return m.queries, nil
}

func (m *mockHistoryService) Get(ctx context.Context, userID string, id uuid.UUID) (*services.QueryDetail, error) {
	if m.detail == nil || m.detail.Query.ID != id || m.detail.Query.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return m.detail, nil
}
