package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/repositories"
)

func TestQueryHistoryService_List(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewInMemoryStore()
	for _, q := range []string{"first", "second", "third"} {
		require.NoError(t, store.CreateQuery(ctx, &models.QueryRecord{UserID: "u1", NaturalQuery: q}))
	}
	require.NoError(t, store.CreateQuery(ctx, &models.QueryRecord{UserID: "u2", NaturalQuery: "other"}))

	svc := NewQueryHistoryService(store, zaptest.NewLogger(t))

	all, err := svc.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].NaturalQuery)

	limited, err := svc.List(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestQueryHistoryService_Get(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewInMemoryStore()
	q := &models.QueryRecord{UserID: "u1", NaturalQuery: "sales by region"}
	require.NoError(t, store.CreateQuery(ctx, q))
	require.NoError(t, store.CreateVisualization(ctx, &models.VisualizationRecord{QueryID: q.ID, ChartType: models.ChartPie}))

	svc := NewQueryHistoryService(store, zaptest.NewLogger(t))

	detail, err := svc.Get(ctx, "u1", q.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales by region", detail.Query.NaturalQuery)
	require.Len(t, detail.Visualizations, 1)
	assert.Equal(t, models.ChartPie, detail.Visualizations[0].ChartType)

	_, err = svc.Get(ctx, "u2", q.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Get(ctx, "u1", uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
