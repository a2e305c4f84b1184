package tools

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

func TestAskTool(t *testing.T) {
	rows := make([]models.Record, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, models.Record{"region": fmt.Sprintf("r%d", i), "amount": i})
	}
	qs := &mockQueryService{result: &services.ProcessResult{
		QueryID:  "q-1",
		Results:  rows,
		Columns:  []string{"region", "amount"},
		Insights: models.Insights{Summary: "Found 60 records", KeyInsights: []string{"r59 leads"}},
		Analysis: models.Analysis{QueryType: models.QueryDistribution},
	}}
	s := newTestServer()
	RegisterAskTool(s, &AskToolDeps{QueryService: qs, Logger: zap.NewNop()})

	dsID := uuid.New()
	reply := callTool(t, s, "u1", "ask_data", map[string]any{"question": "  sales by region ", "data_source_id": dsID.String()})
	got := decodeText[askResult](t, reply)

	assert.Equal(t, "q-1", got.QueryID)
	assert.Equal(t, "Found 60 records", got.Summary)
	assert.Equal(t, 60, got.RowCount)
	assert.Len(t, got.Rows, maxAskRows)
	assert.True(t, got.Truncated)
	assert.Equal(t, models.QueryDistribution, got.QueryType)

	assert.Equal(t, "u1", qs.lastReq.UserID)
	assert.Equal(t, "sales by region", qs.lastReq.Query)
	require.NotNil(t, qs.lastReq.DataSourceID)
	assert.Equal(t, dsID, *qs.lastReq.DataSourceID)
}

func TestAskTool_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing question", map[string]any{}},
		{"blank question", map[string]any{"question": "  "}},
		{"bad data source id", map[string]any{"question": "sales", "data_source_id": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := &mockQueryService{}
			s := newTestServer()
			RegisterAskTool(s, &AskToolDeps{QueryService: qs, Logger: zap.NewNop()})

			reply := callTool(t, s, "u1", "ask_data", tt.args)
			require.NotNil(t, reply.Result)
			assert.True(t, reply.Result.IsError)
			assert.Contains(t, reply.text(t), "invalid_parameters")
			assert.Zero(t, qs.calls)
		})
	}
}

func TestAskTool_Errors(t *testing.T) {
	t.Run("no data source is actionable", func(t *testing.T) {
		qs := &mockQueryService{err: fmt.Errorf("Query processing failed: %w", apperrors.NewNoDataSourceError("no data source available"))}
		s := newTestServer()
		RegisterAskTool(s, &AskToolDeps{QueryService: qs, Logger: zap.NewNop()})

		reply := callTool(t, s, "u1", "ask_data", map[string]any{"question": "sales"})
		require.NotNil(t, reply.Result)
		assert.True(t, reply.Result.IsError)
		assert.Contains(t, reply.text(t), "no_data_source")
	})

	t.Run("unexpected errors are protocol errors", func(t *testing.T) {
		qs := &mockQueryService{err: fmt.Errorf("Query processing failed: %w", fmt.Errorf("boom"))}
		s := newTestServer()
		RegisterAskTool(s, &AskToolDeps{QueryService: qs, Logger: zap.NewNop()})

		reply := callTool(t, s, "u1", "ask_data", map[string]any{"question": "sales"})
		assert.Nil(t, reply.Result)
		require.NotNil(t, reply.Error)
	})

	t.Run("anonymous callers are rejected", func(t *testing.T) {
		qs := &mockQueryService{}
		s := newTestServer()
		RegisterAskTool(s, &AskToolDeps{QueryService: qs, Logger: zap.NewNop()})

		reply := callTool(t, s, "", "ask_data", map[string]any{"question": "sales"})
		require.NotNil(t, reply.Error)
		assert.Zero(t, qs.calls)
	})
}
