package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/middleware"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// QueriesHandler serves the user's query history.
type QueriesHandler struct {
	historyService services.QueryHistoryService
	logger         *zap.Logger
}

// NewQueriesHandler creates a new queries handler.
func NewQueriesHandler(historyService services.QueryHistoryService, logger *zap.Logger) *QueriesHandler {
	return &QueriesHandler{historyService: historyService, logger: logger}
}

// RegisterRoutes registers the query history routes on the given mux.
func (h *QueriesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/queries", middleware.RequireUser(h.List))
	mux.HandleFunc("GET /api/queries/{id}", middleware.RequireUser(h.Get))
}

// List handles GET /api/queries?limit=N, newest first.
func (h *QueriesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = n
	}

	queries, err := h.historyService.List(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch queries")
		return
	}
	if err := WriteJSON(w, http.StatusOK, queries); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/queries/{id}: the query and its visualizations.
func (h *QueriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.historyService.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch query")
		return
	}
	if err := WriteJSON(w, http.StatusOK, detail); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
