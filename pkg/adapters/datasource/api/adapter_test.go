package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, OnlyRetryable: true}
}

func newTestAdapter(t *testing.T) *Adapter {
	return NewAdapter(&http.Client{Timeout: 5 * time.Second}, fastRetry(), zaptest.NewLogger(t))
}

func TestGetSchema_FromFirstArrayElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		w.Write([]byte(`[{"name":"widget","price":9.5,"active":true,"created":"2024-03-01T10:00:00Z","meta":null},{"name":"gear"}]`))
	}))
	defer srv.Close()

	a := newTestAdapter(t)
	schema, err := a.GetSchema(context.Background(), map[string]any{
		"url":     srv.URL,
		"api_key": "secret",
		"headers": map[string]any{"X-Custom": "yes"},
	})
	require.NoError(t, err)

	require.Len(t, schema.Columns, 5)
	names := []string{}
	for _, c := range schema.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"name", "price", "active", "created", "meta"}, names)
	assert.Equal(t, models.ColumnString, schema.Columns[0].Type)
	assert.Equal(t, models.ColumnNumber, schema.Columns[1].Type)
	assert.Equal(t, models.ColumnBoolean, schema.Columns[2].Type)
	assert.Equal(t, models.ColumnDate, schema.Columns[3].Type)
	assert.True(t, schema.Columns[4].Nullable)
	assert.Equal(t, 2, *schema.RowCount)
}

func TestGetSchema_SingleObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total": 12, "region": "north"}`))
	}))
	defer srv.Close()

	schema, err := newTestAdapter(t).GetSchema(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, "total", schema.Columns[0].Name)
}

func TestExecuteQuery_CoercesObjectToArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"a": 1}`))
	}))
	defer srv.Close()

	res, err := newTestAdapter(t).ExecuteQuery(context.Background(), map[string]any{"url": srv.URL}, models.Query{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1.0, res.Records[0]["a"])
}

func TestExecuteQuery_ScalarsAreWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1, 2, 3]`))
	}))
	defer srv.Close()

	res, err := newTestAdapter(t).ExecuteQuery(context.Background(), map[string]any{"url": srv.URL}, models.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"value"}, res.Columns)
	assert.Len(t, res.Records, 3)
}

func TestExecuteQuery_GetSendsFiltersAsParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	q := models.StructuredOf(models.StructuredQuery{
		Filters: []models.Filter{
			{Column: "region", Operator: models.OpEquals, Value: "north"},
			{Column: "amount", Operator: models.OpGreaterThan, Value: 10},
		},
		Limit: 5,
	})
	res, err := newTestAdapter(t).ExecuteQuery(context.Background(), map[string]any{"url": srv.URL + "?v=2"}, q)
	require.NoError(t, err)
	assert.Empty(t, res.Records)

	assert.Contains(t, gotQuery, "region=north")
	assert.Contains(t, gotQuery, "amount%5Bgreater_than%5D=10")
	assert.Contains(t, gotQuery, "limit=5")
	assert.Contains(t, gotQuery, "v=2")
}

func TestExecuteQuery_PostSendsFiltersInBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &got))
		w.Write([]byte(`[{"x": 1}]`))
	}))
	defer srv.Close()

	q := models.StructuredOf(models.StructuredQuery{
		Filters: []models.Filter{{Column: "region", Operator: models.OpEquals, Value: "north"}},
	})
	_, err := newTestAdapter(t).ExecuteQuery(context.Background(), map[string]any{
		"url":    srv.URL,
		"method": "POST",
		"body":   map[string]any{"report": "sales"},
	}, q)
	require.NoError(t, err)

	assert.Equal(t, "sales", got["report"])
	filters, ok := got["filters"].([]any)
	require.True(t, ok)
	assert.Len(t, filters, 1)
}

func TestExecuteQuery_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"ok": true}]`))
	}))
	defer srv.Close()

	res, err := newTestAdapter(t).ExecuteQuery(context.Background(), map[string]any{"url": srv.URL}, models.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteQuery_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestAdapter(t).ExecuteQuery(context.Background(), map[string]any{"url": srv.URL}, models.Query{})

	require.Error(t, err)
	assert.True(t, apperrors.IsConnection(err))
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteQuery_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := newTestAdapter(t).ExecuteQuery(context.Background(), map[string]any{"url": srv.URL}, models.Query{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConnection(err))
}

func TestConfigValidation(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.GetSchema(context.Background(), map[string]any{"url": "not a url"})
	assert.True(t, apperrors.IsConfiguration(err))

	_, err = a.GetSchema(context.Background(), map[string]any{"url": "https://example.com", "method": "DELETE"})
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestValidateConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	a := newTestAdapter(t)
	ctx := context.Background()
	assert.True(t, a.ValidateConnection(ctx, map[string]any{"url": srv.URL}))
	assert.False(t, a.ValidateConnection(ctx, map[string]any{"url": srv.URL + "/down"}))
	assert.False(t, a.ValidateConnection(ctx, map[string]any{}))
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, []string{"z", "a", "m"}, objectKeys([]byte(`{"z":1,"a":{"n":[1,2]},"m":"x"}`)))
	assert.Nil(t, objectKeys([]byte(`[1]`)))
}
