package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const exportChartData = `{"type":"pie","labels":["A","B"],"datasets":[{"label":"sales","data":[10,50]}],"metrics":{},"rawData":[]}`

func TestExportHandler_JSON(t *testing.T) {
	h := NewExportHandler(zap.NewNop())

	rec := serve(h, http.MethodPost, "/api/export/chart",
		`{"chartData":`+exportChartData+`,"chartType":"pie","format":"json"}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	disposition := rec.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, `attachment; filename="chart_`), disposition)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "pie", doc["chartType"])
	assert.NotEmpty(t, doc["exportedAt"])
}

func TestExportHandler_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"png not supported", `{"chartData":` + exportChartData + `,"chartType":"pie","format":"png"}`, "unsupported_format"},
		{"unknown format", `{"chartData":` + exportChartData + `,"chartType":"pie","format":"xlsx"}`, "validation_error"},
		{"missing chart data", `{"chartType":"pie","format":"json"}`, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(NewExportHandler(zap.NewNop()), http.MethodPost, "/api/export/chart", tt.body, "u1")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeBody[map[string]string](t, rec)["error"])
		})
	}
}
