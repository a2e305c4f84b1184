package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-insights/pkg/sql"
)

// Collaborator is the AI side of query processing. Every method may fail;
// callers fall back to deterministic logic.
type Collaborator interface {
	Analyze(ctx context.Context, text string) (*models.Analysis, error)
	GenerateQuery(ctx context.Context, text string, analysis *models.Analysis, schema *models.Schema, sourceType models.DataSourceType) (models.Query, error)
	GenerateInsights(ctx context.Context, text string, result *models.Result, analysis *models.Analysis) (*models.Insights, error)
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}

// AIService implements Collaborator on top of a ChatClient, guarded by a
// circuit breaker so a failing provider is skipped quickly.
type AIService struct {
	client  ChatClient
	breaker *CircuitBreaker
	logger  *zap.Logger
}

func NewAIService(client ChatClient, breaker *CircuitBreaker, logger *zap.Logger) *AIService {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	return &AIService{client: client, breaker: breaker, logger: logger.Named("ai")}
}

func (s *AIService) complete(ctx context.Context, system, prompt string) (string, error) {
	if ok, err := s.breaker.Allow(); !ok {
		return "", NewError(ErrorTypeEndpoint, "provider unavailable", false, err)
	}
	out, err := s.client.Complete(ctx, system, prompt)
	if err != nil {
		s.breaker.RecordFailure()
		return "", err
	}
	s.breaker.RecordSuccess()
	return out, nil
}

// Analyze asks the model for a structured reading of the question.
func (s *AIService) Analyze(ctx context.Context, text string) (*models.Analysis, error) {
	out, err := s.complete(ctx, analyzeSystem, text)
	if err != nil {
		return nil, err
	}
	analysis, err := ParseJSONResponse[models.Analysis](out)
	if err != nil {
		return nil, NewError(ErrorTypeResponse, "unparseable analysis", false, err)
	}
	if !analysis.QueryType.Valid() {
		return nil, NewError(ErrorTypeResponse, fmt.Sprintf("unknown query type %q", analysis.QueryType), false, nil)
	}
	if analysis.Entities == nil {
		analysis.Entities = []string{}
	}
	if analysis.SuggestedVisualization == "" {
		analysis.SuggestedVisualization = models.ChartBar
	}
	return &analysis, nil
}

// GenerateQuery returns literal SQL for SQL sources and a structured query
// for everything else. SQL is cleaned but not validated here.
func (s *AIService) GenerateQuery(ctx context.Context, text string, analysis *models.Analysis, schema *models.Schema, sourceType models.DataSourceType) (models.Query, error) {
	prompt := queryPrompt(text, analysis, schema)

	if sourceType.IsSQL() {
		out, err := s.complete(ctx, fmt.Sprintf(sqlSystem, dialectName(sourceType)), prompt)
		if err != nil {
			return models.Query{}, err
		}
		stmt := sqlutil.CleanSQLResponse(out)
		if strings.TrimSpace(strings.TrimSuffix(stmt, ";")) == "" {
			return models.Query{}, NewError(ErrorTypeResponse, "empty SQL in response", false, nil)
		}
		return models.SQLQuery(stmt), nil
	}

	out, err := s.complete(ctx, structuredSystem, prompt)
	if err != nil {
		return models.Query{}, err
	}
	sq, err := ParseJSONResponse[models.StructuredQuery](out)
	if err != nil {
		return models.Query{}, NewError(ErrorTypeResponse, "unparseable structured query", false, err)
	}
	return models.StructuredOf(sq), nil
}

// GenerateInsights summarizes a result. A reply with an empty summary or
// empty lists is treated as a failure.
func (s *AIService) GenerateInsights(ctx context.Context, text string, result *models.Result, analysis *models.Analysis) (*models.Insights, error) {
	out, err := s.complete(ctx, insightsSystem, insightsPrompt(text, result, analysis))
	if err != nil {
		return nil, err
	}
	insights, err := ParseJSONResponse[models.Insights](out)
	if err != nil {
		return nil, NewError(ErrorTypeResponse, "unparseable insights", false, err)
	}
	if insights.Summary == "" || len(insights.KeyInsights) == 0 || len(insights.Recommendations) == 0 {
		return nil, NewError(ErrorTypeResponse, "incomplete insights", false, nil)
	}
	return &insights, nil
}

// maxTitleLen is the longest title kept from the model.
const maxTitleLen = 50

func (s *AIService) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	out, err := s.complete(ctx, titleSystem, firstMessage)
	if err != nil {
		return "", err
	}
	title := strings.Trim(strings.TrimSpace(out), `"'`)
	if title == "" {
		return "", NewError(ErrorTypeResponse, "empty title", false, nil)
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	return title, nil
}

var _ Collaborator = (*AIService)(nil)
