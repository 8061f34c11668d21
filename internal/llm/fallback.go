package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"deep-search-wiser/internal/logger"
)

// FallbackProvider tries providers in order, falling back on retryable errors.
type FallbackProvider struct {
	providers []Provider
	log       *zap.Logger
}

// NewFallbackProvider creates a provider chain. The first provider is primary.
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers, log: logger.Named("llm")}
}

func (f *FallbackProvider) Name() string {
	if len(f.providers) > 0 {
		return f.providers[0].Name() + "+fallback"
	}
	return "fallback"
}

func (f *FallbackProvider) DefaultModel() string {
	if len(f.providers) > 0 {
		return f.providers[0].DefaultModel()
	}
	return ""
}

// SupportsTools is true only when every provider in the chain can take tool
// definitions, so a fallback never receives a request it cannot serve.
func (f *FallbackProvider) SupportsTools() bool {
	if len(f.providers) == 0 {
		return false
	}
	for _, p := range f.providers {
		if !SupportsTools(p) {
			return false
		}
	}
	return true
}

func (f *FallbackProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	if len(f.providers) == 0 {
		return nil, &LLMError{Type: ErrorInvalidInput, Message: "no LLM providers configured"}
	}
	var lastErr error
	for i, p := range f.providers {
		// A model name belongs to the primary; fallbacks use their own default.
		r := req
		if i > 0 && req.Model != "" {
			cp := *req
			cp.Model = ""
			r = &cp
		}
		resp, err := p.Chat(ctx, r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		logger.FromContext(ctx, f.log).Warn("provider failed, trying next",
			zap.String("provider", p.Name()), zap.Error(err))
	}
	return nil, lastErr
}

// isRetryable returns true for errors that warrant trying a different provider.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		return true // unknown errors are retryable
	}
	switch llmErr.Type {
	case ErrorAuth, ErrorInvalidInput:
		return false // these won't succeed on retry
	default:
		return true
	}
}
