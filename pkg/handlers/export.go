package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/chart"
	"github.com/ekaya-inc/ekaya-insights/pkg/middleware"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// ExportChartRequest for POST /api/export/chart.
type ExportChartRequest struct {
	ChartData *models.ChartData `json:"chartData" validate:"required"`
	ChartType string            `json:"chartType" validate:"required"`
	Format    string            `json:"format" validate:"required,oneof=png pdf svg json"`
}

// ExportHandler exports rendered chart data.
type ExportHandler struct {
	logger *zap.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(logger *zap.Logger) *ExportHandler {
	return &ExportHandler{logger: logger}
}

// RegisterRoutes registers the export route on the given mux.
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/export/chart", middleware.RequireUser(h.ExportChart))
}

// ExportChart handles POST /api/export/chart. Only json is produced here;
// image and document formats are rendered client side.
func (h *ExportHandler) ExportChart(w http.ResponseWriter, r *http.Request) {
	var req ExportChartRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if req.Format != "json" {
		msg := fmt.Sprintf("Export format %q is not supported", req.Format)
		if err := ErrorResponse(w, http.StatusBadRequest, "unsupported_format", msg); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	export, err := chart.ExportJSON(req.ChartData, req.ChartType)
	if err != nil {
		writeServiceError(w, h.logger, err, "Export failed")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Payload); err != nil {
		h.logger.Error("Failed to write export", zap.Error(err))
	}
}
