package llm

import (
	"context"
	"sync"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// MockChatClient is a ChatClient for tests. CompleteFunc controls replies.
type MockChatClient struct {
	CompleteFunc func(ctx context.Context, system, prompt string) (string, error)
	Model        string

	mu            sync.Mutex
	CompleteCalls int
	LastSystem    string
	LastPrompt    string
}

func (m *MockChatClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.LastSystem, m.LastPrompt = system, prompt
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt)
	}
	return "", nil
}

func (m *MockChatClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// MockCollaborator is a Collaborator for tests. Unset funcs return zero
// values and no error.
type MockCollaborator struct {
	AnalyzeFunc          func(ctx context.Context, text string) (*models.Analysis, error)
	GenerateQueryFunc    func(ctx context.Context, text string, analysis *models.Analysis, schema *models.Schema, sourceType models.DataSourceType) (models.Query, error)
	GenerateInsightsFunc func(ctx context.Context, text string, result *models.Result, analysis *models.Analysis) (*models.Insights, error)
	GenerateTitleFunc    func(ctx context.Context, firstMessage string) (string, error)

	mu                    sync.Mutex
	AnalyzeCalls          int
	GenerateQueryCalls    int
	GenerateInsightsCalls int
	GenerateTitleCalls    int
}

func (m *MockCollaborator) count(n *int) {
	m.mu.Lock()
	*n++
	m.mu.Unlock()
}

func (m *MockCollaborator) Analyze(ctx context.Context, text string) (*models.Analysis, error) {
	m.count(&m.AnalyzeCalls)
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, text)
	}
	return &models.Analysis{QueryType: models.QueryMetrics, Entities: []string{}, SuggestedVisualization: models.ChartBar}, nil
}

func (m *MockCollaborator) GenerateQuery(ctx context.Context, text string, analysis *models.Analysis, schema *models.Schema, sourceType models.DataSourceType) (models.Query, error) {
	m.count(&m.GenerateQueryCalls)
	if m.GenerateQueryFunc != nil {
		return m.GenerateQueryFunc(ctx, text, analysis, schema, sourceType)
	}
	return models.StructuredOf(models.StructuredQuery{}), nil
}

func (m *MockCollaborator) GenerateInsights(ctx context.Context, text string, result *models.Result, analysis *models.Analysis) (*models.Insights, error) {
	m.count(&m.GenerateInsightsCalls)
	if m.GenerateInsightsFunc != nil {
		return m.GenerateInsightsFunc(ctx, text, result, analysis)
	}
	return &models.Insights{Summary: "mock", KeyInsights: []string{"mock"}, Recommendations: []string{"mock"}}, nil
}

func (m *MockCollaborator) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	m.count(&m.GenerateTitleCalls)
	if m.GenerateTitleFunc != nil {
		return m.GenerateTitleFunc(ctx, firstMessage)
	}
	return "Mock Title", nil
}

var (
	_ ChatClient   = (*MockChatClient)(nil)
	_ Collaborator = (*MockCollaborator)(nil)
)
