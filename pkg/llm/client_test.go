package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(ClientConfig{Endpoint: srv.URL + "/v1/", Model: "gpt-4o", APIKey: "sk-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "be brief", "hi")

	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "gpt-4o", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "hi", msgs[1].(map[string]any)["content"])
}

func TestOpenAIClient_ErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(ClientConfig{Endpoint: srv.URL, Model: "gpt-4o", APIKey: "bad"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "s", "p")

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrorTypeAuth, llmErr.Type)
	assert.Equal(t, 401, llmErr.StatusCode)
	assert.False(t, llmErr.Retryable)
}

func TestAnthropicClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"bonjour"}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(ClientConfig{Endpoint: srv.URL, Model: "claude-test", APIKey: "ak-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "be brief", "hi")

	require.NoError(t, err)
	assert.Equal(t, "bonjour", out)
	assert.Equal(t, "be brief", got["system"])
	assert.Equal(t, float64(defaultAnthropicMaxTokens), got["max_tokens"])
}

func TestNewProvider(t *testing.T) {
	logger := zap.NewNop()

	c, err := NewProvider(ProviderConfig{Provider: ProviderOpenAI}, logger)
	require.NoError(t, err)
	assert.Nil(t, c, "no key means no collaborator")

	c, err = NewProvider(ProviderConfig{Provider: ProviderAnthropic, APIKey: "k"}, logger)
	require.NoError(t, err)
	svc, ok := c.(*AIService)
	require.True(t, ok)
	assert.Equal(t, DefaultAnthropicModel, svc.client.GetModel())

	c, err = NewProvider(ProviderConfig{APIKey: "k", Model: "gpt-4o-mini"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.(*AIService).client.GetModel())

	_, err = NewProvider(ProviderConfig{Provider: "cohere", APIKey: "k"}, logger)
	assert.Error(t, err)
}
