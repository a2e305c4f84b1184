package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/config"
)

// ServiceName is reported by the health and ping endpoints.
const ServiceName = "ekaya-insights"

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status      string                `json:"status"`
	Version     string                `json:"version"`
	Service     string                `json:"service"`
	AIEnabled   bool                  `json:"ai_enabled"`
	Storage     string                `json:"storage"`
	Connections *datasource.PoolStats `json:"connections,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// PoolStatter reports SQL pool statistics.
type PoolStatter interface {
	Stats() datasource.PoolStats
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg       *config.Config
	pools     PoolStatter
	aiEnabled bool
	logger    *zap.Logger
}

// NewHealthHandler creates a HealthHandler. pools may be nil.
func NewHealthHandler(cfg *config.Config, pools PoolStatter, aiEnabled bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, pools: pools, aiEnabled: aiEnabled, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Version:   h.cfg.Version,
		Service:   ServiceName,
		AIEnabled: h.aiEnabled,
		Storage:   h.cfg.Database.Backend,
	}
	if h.pools != nil {
		stats := h.pools.Stats()
		response.Connections = &stats
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     ServiceName,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
