package llm

import (
	"context"
	"fmt"
	"time"

	"deep-search-wiser/internal/config"
)

// NewProvider creates an LLM provider from config.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Provider {
	case "openai", "openrouter", "local":
		return NewOpenAIProvider(OpenAIConfig{
			Name:       cfg.Provider,
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    timeout,
		}), nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    timeout,
		}), nil
	case "gemini":
		return NewGeminiProvider(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// NewProviderChain builds the primary provider and, when a usable fallback is
// configured, wraps both in a FallbackProvider.
func NewProviderChain(ctx context.Context, primary config.LLMConfig, fallback *config.LLMConfig) (Provider, error) {
	p, err := NewProvider(ctx, primary)
	if err != nil {
		return nil, err
	}
	if fallback == nil || fallback.Provider == "" || fallback.APIKey == "" {
		return p, nil
	}
	fb, err := NewProvider(ctx, *fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return NewFallbackProvider(p, fb), nil
}
