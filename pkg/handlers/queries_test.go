package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

func TestQueriesHandler_List(t *testing.T) {
	svc := &mockHistoryService{queries: []*models.QueryRecord{{ID: uuid.New(), UserID: "u1", NaturalQuery: "sales"}}}
	h := NewQueriesHandler(svc, zap.NewNop())

	rec := serve(h, http.MethodGet, "/api/queries?limit=5", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.QueryRecord](t, rec), 1)
	assert.Equal(t, 5, svc.lastLimit)

	rec = serve(h, http.MethodGet, "/api/queries?limit=lots", "", "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueriesHandler_Get(t *testing.T) {
	q := &models.QueryRecord{ID: uuid.New(), UserID: "u1", NaturalQuery: "sales"}
	svc := &mockHistoryService{detail: &services.QueryDetail{
		Query:          q,
		Visualizations: []*models.VisualizationRecord{{QueryID: q.ID, ChartType: models.ChartBar}},
	}}
	h := NewQueriesHandler(svc, zap.NewNop())

	rec := serve(h, http.MethodGet, "/api/queries/"+q.ID.String(), "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[services.QueryDetail](t, rec)
	assert.Equal(t, "sales", detail.Query.NaturalQuery)
	require.Len(t, detail.Visualizations, 1)

	rec = serve(h, http.MethodGet, "/api/queries/"+q.ID.String(), "", "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
