// Package llm talks to hosted language models and turns their replies into
// analyses, queries, insights and titles.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatClient sends one system+user exchange and returns the reply text.
type ChatClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	GetModel() string
}

// ClientConfig configures a chat provider.
type ClientConfig struct {
	Endpoint    string // base URL; empty uses the provider default
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// OpenAIClient serves any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client   *openai.Client
	endpoint string
	cfg      ClientConfig
	logger   *zap.Logger
}

func NewOpenAIClient(cfg ClientConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: clientConfig.BaseURL,
		cfg:      cfg,
		logger:   logger.Named("openai"),
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	c.logger.Debug("LLM request",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_len", len(prompt)))
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model, classified.Endpoint = c.cfg.Model, c.endpoint
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(classified))
		return "", classified
	}
	if len(resp.Choices) == 0 {
		return "", NewError(ErrorTypeResponse, "no choices in response", false, nil)
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) GetModel() string { return c.cfg.Model }

// AnthropicClient serves the Anthropic messages API.
type AnthropicClient struct {
	client *anthropic.Client
	cfg    ClientConfig
	logger *zap.Logger
}

const defaultAnthropicMaxTokens = 2000

func NewAnthropicClient(cfg ClientConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}
	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		cfg:    cfg,
		logger: logger.Named("anthropic"),
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	temperature := float32(c.cfg.Temperature)
	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.cfg.Model),
		System:      system,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = c.cfg.Model
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(classified))
		return "", classified
	}

	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			c.logger.Info("LLM request completed",
				zap.Int("input_tokens", resp.Usage.InputTokens),
				zap.Int("output_tokens", resp.Usage.OutputTokens),
				zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}
	return "", NewError(ErrorTypeResponse, "no text content in response", false, nil)
}

func (c *AnthropicClient) GetModel() string { return c.cfg.Model }

var (
	_ ChatClient = (*OpenAIClient)(nil)
	_ ChatClient = (*AnthropicClient)(nil)
)
