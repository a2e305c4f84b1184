package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/middleware"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// mockQueryService returns a fixed result and records the request.
type mockQueryService struct {
	result  *services.ProcessResult
	err     error
	calls   int
	lastReq services.ProcessRequest
}

func (m *mockQueryService) Process(ctx context.Context, req services.ProcessRequest) (*services.ProcessResult, error) {
	m.calls++
	m.lastReq = req
	return m.result, m.err
}

// mockDataSourceService implements the read side of services.DataSourceService.
type mockDataSourceService struct {
	services.DataSourceService

	sources []*models.DataSource
	schema  *models.Schema
	err     error
}

func (m *mockDataSourceService) List(ctx context.Context, userID string) ([]*models.DataSource, error) {
	out := []*models.DataSource{}
	for _, ds := range m.sources {
		if ds.UserID == userID {
			out = append(out, ds)
		}
	}
	return out, m.err
}

func (m *mockDataSourceService) GetSchema(ctx context.Context, userID string, id uuid.UUID) (*models.Schema, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, ds := range m.sources {
		if ds.ID == id && ds.UserID == userID {
			return m.schema, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDataSourceService) ListTypes() []datasource.AdapterInfo { return nil }

// toolReply is the decoded JSON-RPC reply of a tools/call.
type toolReply struct {
	Result *struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callTool invokes a tool as userID. An empty userID calls anonymously.
func callTool(t *testing.T, s *server.MCPServer, userID, name string, args map[string]any) toolReply {
	t.Helper()
	ctx := context.Background()
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
	}

	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	msg, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": params})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(ctx, msg))
	require.NoError(t, err)

	var reply toolReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	return reply
}

// text returns the first text content of a successful reply.
func (r toolReply) text(t *testing.T) string {
	t.Helper()
	require.NotNil(t, r.Result, "expected a result, got error %+v", r.Error)
	require.NotEmpty(t, r.Result.Content)
	return r.Result.Content[0].Text
}

func decodeText[T any](t *testing.T, r toolReply) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(r.text(t)), &v))
	return v
}

func newTestServer() *server.MCPServer {
	return server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
}
