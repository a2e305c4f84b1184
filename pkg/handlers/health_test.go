package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/config"
)

type fakePools struct{ stats datasource.PoolStats }

func (f fakePools) Stats() datasource.PoolStats { return f.stats }

func testConfig() *config.Config {
	return &config.Config{
		Version:  "test-version",
		Env:      "test",
		Database: config.DatabaseConfig{Backend: config.StorageMemory},
	}
}

func TestHealthHandler_Health_WithoutPools(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, false, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Service != ServiceName {
		t.Errorf("expected service %q, got %q", ServiceName, response.Service)
	}
	if response.Storage != "memory" {
		t.Errorf("expected storage 'memory', got %q", response.Storage)
	}
	if response.AIEnabled {
		t.Error("expected AI disabled")
	}
	if response.Connections != nil {
		t.Error("expected nil connections when no pool manager is provided")
	}
}

func TestHealthHandler_Health_WithPools(t *testing.T) {
	pools := fakePools{stats: datasource.PoolStats{TotalPools: 2, PoolsByType: map[string]int{"postgresql": 2}}}
	handler := NewHealthHandler(testConfig(), pools, true, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.AIEnabled {
		t.Error("expected AI enabled")
	}
	if response.Connections == nil || response.Connections.TotalPools != 2 {
		t.Errorf("expected 2 pools, got %+v", response.Connections)
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, false, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Version != "test-version" {
		t.Errorf("expected version 'test-version', got '%s'", response.Version)
	}
	if response.Environment != "test" {
		t.Errorf("expected environment 'test', got '%s'", response.Environment)
	}
	if response.GoVersion == "" {
		t.Error("expected go_version to be set")
	}
}

func TestHealthHandler_RegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), nil, false, zap.NewNop()).RegisterRoutes(mux)

	for _, path := range []string{"/api/health", "/health", "/ping"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}
}
