package llm

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects and configures the AI provider.
type ProviderConfig struct {
	Provider    string
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Breaker     CircuitBreakerConfig
}

// Default models per provider, used when none is configured.
const (
	DefaultOpenAIModel    = "gpt-4o"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
)

// NewProvider builds the AI collaborator. With no API key configured it
// returns nil and no error: the caller runs on the deterministic fallback.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Collaborator, error) {
	if cfg.APIKey == "" {
		logger.Info("no AI API key configured, using local fallback only")
		return nil, nil
	}

	clientCfg := ClientConfig{
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	var client ChatClient
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if clientCfg.Model == "" {
			clientCfg.Model = DefaultOpenAIModel
		}
		c, err := NewOpenAIClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		client = c
	case ProviderAnthropic:
		if clientCfg.Model == "" {
			clientCfg.Model = DefaultAnthropicModel
		}
		c, err := NewAnthropicClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		client = c
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Threshold == 0 {
		breakerCfg = DefaultCircuitBreakerConfig()
	}

	logger.Info("AI provider configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", client.GetModel()))
	return NewAIService(client, NewCircuitBreaker(breakerCfg), logger), nil
}
