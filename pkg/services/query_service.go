package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/chart"
	"github.com/ekaya-inc/ekaya-insights/pkg/fallback"
	"github.com/ekaya-inc/ekaya-insights/pkg/llm"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/schemacache"
	sqlutil "github.com/ekaya-inc/ekaya-insights/pkg/sql"
	"github.com/ekaya-inc/ekaya-insights/pkg/visualization"
)

// State is a step of query processing. A request moves through the states
// in declaration order and ends in Done or Failed.
type State string

const (
	StateReceived       State = "received"
	StateAnalyzed       State = "analyzed"
	StateSourceResolved State = "source_resolved"
	StateSchemaFetched  State = "schema_fetched"
	StateQueryGenerated State = "query_generated"
	StateExecuted       State = "executed"
	StateTransformed    State = "transformed"
	StateInsighted      State = "insighted"
	StatePersisted      State = "persisted"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// PersistStatus reports whether a processed query reached storage.
type PersistStatus string

const (
	PersistOK       PersistStatus = "ok"
	PersistDegraded PersistStatus = "degraded"
)

// PersistResult is the outcome of the persistence step. A degraded result
// never fails the request.
type PersistResult struct {
	Status PersistStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// ProcessRequest is one natural-language question. DataSourceID is optional;
// without it the user's first active source answers.
type ProcessRequest struct {
	UserID         string
	ConversationID string
	Query          string
	DataSourceID   *uuid.UUID
}

// ProcessResult is everything the outer surfaces render for an answer.
type ProcessResult struct {
	QueryID        string                `json:"queryId"`
	Results        []models.Record       `json:"results"`
	Columns        []string              `json:"columns"`
	Visualization  *models.Visualization `json:"visualization,omitempty"`
	Insights       models.Insights       `json:"insights"`
	Analysis       models.Analysis       `json:"analysis"`
	GeneratedQuery models.Query          `json:"generatedQuery"`
	DataSource     *models.DataSource    `json:"-"`
	State          State                 `json:"state"`
	Persistence    PersistResult         `json:"persistence"`
}

// QueryService answers natural-language questions against a user's data sources.
type QueryService interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
}

type queryService struct {
	store    Storage
	adapters datasource.AdapterFactory
	schemas  *schemacache.Cache
	ai       llm.Collaborator
	logger   *zap.Logger
	now      func() time.Time
}

// NewQueryService creates the query orchestrator. ai may be nil, in which
// case every step runs on the deterministic fallback.
func NewQueryService(
	store Storage,
	adapters datasource.AdapterFactory,
	schemas *schemacache.Cache,
	ai llm.Collaborator,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		store:    store,
		adapters: adapters,
		schemas:  schemas,
		ai:       ai,
		logger:   logger.Named("query"),
		now:      time.Now,
	}
}

var _ QueryService = (*queryService)(nil)

// run carries one request through the states.
type run struct {
	logger *zap.Logger
	state  State
}

func (r *run) advance(to State, fields ...zap.Field) {
	r.logger.Debug("query state",
		append([]zap.Field{zap.String("from", string(r.state)), zap.String("to", string(to))}, fields...)...)
	r.state = to
}

func (r *run) fail(err error) error {
	r.logger.Warn("query failed",
		zap.String("state", string(r.state)),
		zap.String("error", logging.SanitizeError(err)),
	)
	r.state = StateFailed
	return fmt.Errorf("Query processing failed: %w", err)
}

func (s *queryService) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	r := &run{
		logger: s.logger.With(zap.String("user_id", req.UserID), zap.String("conversation_id", req.ConversationID)),
		state:  StateReceived,
	}
	if req.Query == "" {
		return nil, r.fail(apperrors.NewValidationError("required", "query", "query is empty"))
	}
	started := s.now()

	analysis := s.analyze(ctx, req.Query)
	r.advance(StateAnalyzed, zap.String("query_type", string(analysis.QueryType)))

	ds, err := s.resolveSource(ctx, req)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StateSourceResolved, zap.String("data_source_id", ds.ID.String()), zap.String("type", string(ds.Type)))

	adapter, err := s.adapters.Get(ds.Type)
	if err != nil {
		return nil, r.fail(err)
	}

	schema := s.schemaFor(ctx, adapter, ds)
	r.advance(StateSchemaFetched, zap.Int("columns", len(schema.Columns)), zap.Int("tables", len(schema.Tables)))

	query := s.generateQuery(ctx, req.Query, &analysis, schema, ds)
	r.advance(StateQueryGenerated, zap.Bool("sql", query.IsSQL()))

	result, err := adapter.ExecuteQuery(ctx, ds.Config, query)
	if err != nil {
		return nil, r.fail(err)
	}
	if result == nil {
		result = &models.Result{Columns: []string{}, Records: []models.Record{}}
	}
	r.advance(StateExecuted, zap.Int("rows", result.RowCount()))

	out := &ProcessResult{
		Results:        result.Records,
		Columns:        result.Columns,
		Analysis:       analysis,
		GeneratedQuery: query,
		DataSource:     ds,
	}

	if analysis.QueryType != models.QueryMetrics && result.RowCount() > 0 {
		viz, err := visualization.Build(analysis.SuggestedVisualization, result)
		if err != nil {
			r.logger.Warn("visualization skipped", zap.Error(err))
		} else {
			out.Visualization = viz
		}
	}
	r.advance(StateTransformed, zap.Bool("visualization", out.Visualization != nil))

	out.Insights = s.insights(ctx, req.Query, result, &analysis)
	r.advance(StateInsighted)

	out.QueryID, out.Persistence = s.persist(ctx, req, ds, query, &analysis, result, out.Visualization, s.now().Sub(started))
	r.advance(StatePersisted, zap.String("query_id", out.QueryID), zap.String("persistence", string(out.Persistence.Status)))

	r.advance(StateDone)
	out.State = r.state
	return out, nil
}

func (s *queryService) analyze(ctx context.Context, text string) models.Analysis {
	if s.ai != nil {
		analysis, err := s.ai.Analyze(ctx, text)
		if err == nil && analysis != nil {
			return *analysis
		}
		s.logger.Warn("AI analysis unavailable, using fallback", zap.Error(err))
	}
	return fallback.Analyze(text)
}

// resolveSource picks the explicit source, else the user's first active
// source, else the user's first source.
func (s *queryService) resolveSource(ctx context.Context, req ProcessRequest) (*models.DataSource, error) {
	if req.DataSourceID != nil {
		ds, err := s.store.GetDataSource(ctx, *req.DataSourceID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewNoDataSourceError("data source not found")
			}
			return nil, fmt.Errorf("failed to load data source: %w", err)
		}
		if ds.UserID != req.UserID {
			return nil, apperrors.NewNoDataSourceError("data source not found")
		}
		return ds, nil
	}

	sources, err := s.store.GetDataSourcesByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	for _, ds := range sources {
		if ds.IsActive {
			return ds, nil
		}
	}
	if len(sources) > 0 {
		return sources[0], nil
	}
	return nil, apperrors.NewNoDataSourceError("no data source available")
}

// schemaFor never fails. SQL sources go through the schema cache; other
// sources degrade to an empty schema.
func (s *queryService) schemaFor(ctx context.Context, adapter datasource.Adapter, ds *models.DataSource) *models.Schema {
	if ds.Type.IsSQL() {
		schema, source := s.schemas.Get(ctx, ds.ID.String(), func(ctx context.Context) (*models.Schema, error) {
			return adapter.GetSchema(ctx, ds.Config)
		})
		s.logger.Debug("schema resolved", zap.String("data_source_id", ds.ID.String()), zap.String("source", string(source)))
		return schema
	}

	schema, err := adapter.GetSchema(ctx, ds.Config)
	if err != nil || schema == nil {
		s.logger.Warn("schema unavailable, continuing without it",
			zap.String("data_source_id", ds.ID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		return &models.Schema{Columns: []models.SchemaColumn{}}
	}
	return schema
}

func (s *queryService) generateQuery(ctx context.Context, text string, analysis *models.Analysis, schema *models.Schema, ds *models.DataSource) models.Query {
	if s.ai != nil {
		q, err := s.ai.GenerateQuery(ctx, text, analysis, schema, ds.Type)
		if err == nil {
			if checked, ok := s.checkGenerated(q, ds.Type); ok {
				return checked
			}
		} else {
			s.logger.Warn("AI query generation unavailable, using fallback", zap.Error(err))
		}
	}

	if !ds.Type.IsSQL() {
		return models.StructuredOf(fallback.GenerateQuery(*analysis, schema))
	}
	return fallback.GenerateSQLQuery(*analysis, schema)
}

// checkGenerated accepts an AI query only if it fits the source: SQL must
// pass the read-only rules and only SQL sources take SQL at all.
func (s *queryService) checkGenerated(q models.Query, t models.DataSourceType) (models.Query, bool) {
	switch {
	case q.IsEmpty():
		s.logger.Warn("AI returned an empty query, using fallback")
		return q, false
	case q.IsSQL() && !t.IsSQL():
		s.logger.Warn("AI returned SQL for a non-SQL source, using fallback", zap.String("type", string(t)))
		return q, false
	case q.IsSQL():
		normalized, err := sqlutil.ValidateGeneratedSQL(q.SQL)
		if err != nil {
			s.logger.Warn("AI SQL rejected, using fallback",
				zap.String("sql", logging.SanitizeQuery(q.SQL)),
				zap.Error(err),
			)
			return q, false
		}
		return models.SQLQuery(normalized), true
	}
	return q, true
}

func (s *queryService) insights(ctx context.Context, text string, result *models.Result, analysis *models.Analysis) models.Insights {
	if s.ai != nil {
		in, err := s.ai.GenerateInsights(ctx, text, result, analysis)
		if err == nil && in != nil {
			return *in
		}
		s.logger.Warn("AI insights unavailable, using fallback", zap.Error(err))
	}
	return fallback.Insights(text, result, analysis)
}

// persist stores the query and its visualization. Storage failures are
// reported in the PersistResult and a time-based id stands in for the
// stored one.
func (s *queryService) persist(
	ctx context.Context,
	req ProcessRequest,
	ds *models.DataSource,
	query models.Query,
	analysis *models.Analysis,
	result *models.Result,
	viz *models.Visualization,
	elapsed time.Duration,
) (string, PersistResult) {
	dsID := ds.ID
	record := &models.QueryRecord{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		DataSourceID:   &dsID,
		NaturalQuery:   req.Query,
		GeneratedQuery: query,
		Analysis:       analysis,
		ResultCount:    result.RowCount(),
		ExecutionTime:  elapsed,
		Metadata:       map[string]any{"dataSourceType": string(ds.Type), "columns": len(result.Columns)},
	}
	if err := s.store.CreateQuery(ctx, record); err != nil {
		s.logger.Warn("query storage failed, using fallback id", zap.String("error", logging.SanitizeError(err)))
		return fmt.Sprintf("query-%d", s.now().UnixMilli()), PersistResult{Status: PersistDegraded, Reason: err.Error()}
	}

	if viz != nil {
		title := req.Query
		if viz.Chart != nil {
			title = chart.Summary(viz.Chart)
		}
		err := s.store.CreateVisualization(ctx, &models.VisualizationRecord{
			QueryID:   record.ID,
			ChartType: viz.Type,
			Config:    viz.Config,
			Data:      viz.Data,
			Title:     title,
		})
		if err != nil {
			s.logger.Warn("visualization storage failed", zap.String("error", logging.SanitizeError(err)))
			return record.ID.String(), PersistResult{Status: PersistDegraded, Reason: err.Error()}
		}
	}
	return record.ID.String(), PersistResult{Status: PersistOK}
}
