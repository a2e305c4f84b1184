package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/middleware"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// maskedValue replaces secret config values in responses.
const maskedValue = "********"

var secretConfigKeys = []string{"password", "secret", "token", "api_key", "apikey", "credentials", "private_key", "connection_string"}

// DataSourceResponse is a data source as returned to clients, with secrets
// in its config masked.
type DataSourceResponse struct {
	*models.DataSource
	Config map[string]any `json:"config"`
}

// ListDataSourceTypesResponse lists the adapters this server supports.
type ListDataSourceTypesResponse struct {
	Types []datasource.AdapterInfo `json:"types"`
}

// TestConnectionRequest checks a config without saving it.
type TestConnectionRequest struct {
	Type   models.DataSourceType `json:"type" validate:"required"`
	Config map[string]any        `json:"config"`
}

// TestConnectionResponse for connection test result.
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DataSourcesHandler handles data source HTTP requests.
type DataSourcesHandler struct {
	dataSourceService services.DataSourceService
	logger            *zap.Logger
}

// NewDataSourcesHandler creates a new data sources handler.
func NewDataSourcesHandler(dataSourceService services.DataSourceService, logger *zap.Logger) *DataSourcesHandler {
	return &DataSourcesHandler{
		dataSourceService: dataSourceService,
		logger:            logger,
	}
}

// RegisterRoutes registers the data source routes on the given mux.
func (h *DataSourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/data-sources", middleware.RequireUser(h.List))
	mux.HandleFunc("POST /api/data-sources", middleware.RequireUser(h.Create))
	mux.HandleFunc("GET /api/data-sources/types", middleware.RequireUser(h.ListTypes))
	mux.HandleFunc("POST /api/data-sources/test", middleware.RequireUser(h.TestConnection))
	mux.HandleFunc("GET /api/data-sources/{id}", middleware.RequireUser(h.Get))
	mux.HandleFunc("PUT /api/data-sources/{id}", middleware.RequireUser(h.Update))
	mux.HandleFunc("DELETE /api/data-sources/{id}", middleware.RequireUser(h.Delete))
	mux.HandleFunc("GET /api/data-sources/{id}/schema", middleware.RequireUser(h.Schema))
}

// List handles GET /api/data-sources
func (h *DataSourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.dataSourceService.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch data sources")
		return
	}

	data := make([]DataSourceResponse, len(sources))
	for i, ds := range sources {
		data[i] = toDataSourceResponse(ds)
	}
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/data-sources. The connection is validated
// before anything is stored.
func (h *DataSourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateDataSourceRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	ds, err := h.dataSourceService.Create(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create data source")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, toDataSourceResponse(ds)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/data-sources/{id}
func (h *DataSourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.dataSourceService.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch data source")
		return
	}
	if err := WriteJSON(w, http.StatusOK, toDataSourceResponse(ds)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/data-sources/{id}
func (h *DataSourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.UpdateDataSourceRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	ds, err := h.dataSourceService.Update(r.Context(), middleware.GetUserID(r.Context()), id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update data source")
		return
	}
	if err := WriteJSON(w, http.StatusOK, toDataSourceResponse(ds)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/data-sources/{id}
func (h *DataSourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.dataSourceService.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete data source")
		return
	}

	response := ApiResponse{Success: true, Message: "Data source deleted successfully"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Schema handles GET /api/data-sources/{id}/schema
func (h *DataSourcesHandler) Schema(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDataSourceID(w, r, h.logger)
	if !ok {
		return
	}

	schema, err := h.dataSourceService.GetSchema(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch schema")
		return
	}
	if err := WriteJSON(w, http.StatusOK, schema); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListTypes handles GET /api/data-sources/types
func (h *DataSourcesHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	response := ListDataSourceTypesResponse{Types: h.dataSourceService.ListTypes()}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// TestConnection handles POST /api/data-sources/test. An unreachable
// backend is a normal answer, not an error.
func (h *DataSourcesHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req TestConnectionRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	ok, err := h.dataSourceService.TestConnection(r.Context(), req.Type, req.Config)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to test connection")
		return
	}

	response := TestConnectionResponse{Success: ok, Message: "Connection successful"}
	if !ok {
		response.Message = services.ConnectFailedMessage
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func toDataSourceResponse(ds *models.DataSource) DataSourceResponse {
	return DataSourceResponse{DataSource: ds, Config: maskConfig(ds.Config)}
}

// maskConfig copies config with secret values masked. Nested maps, such as
// API headers, are masked too.
func maskConfig(config map[string]any) map[string]any {
	out := make(map[string]any, len(config))
	for k, v := range config {
		if isSecretKey(k) {
			out[k] = maskedValue
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = maskConfig(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	if lower == "authorization" {
		return true
	}
	for _, s := range secretConfigKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
