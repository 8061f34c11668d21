package llm

import (
	"context"
	"errors"
	"strings"
)

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Chat sends a chat completion request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error)

	// Name returns the provider name (e.g. "openai", "anthropic").
	Name() string

	// DefaultModel returns the default model for this provider.
	DefaultModel() string
}

// ToolCaller is implemented by providers that support native tool calling.
type ToolCaller interface {
	SupportsTools() bool
}

// SupportsTools reports whether p can be sent ToolDefinitions.
func SupportsTools(p Provider) bool {
	tc, ok := p.(ToolCaller)
	return ok && tc.SupportsTools()
}

// LLMError wraps an error with a classification for fallback logic.
type LLMError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Err != nil && e.Message != e.Err.Error() {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// classify maps a transport error to an ErrorType, preferring the HTTP status
// when the SDK exposes one.
func classify(err error, status int) *LLMError {
	llmErr := &LLMError{Err: err, Message: err.Error()}

	switch {
	case status == 401 || status == 403:
		llmErr.Type = ErrorAuth
	case status == 429:
		llmErr.Type = ErrorRateLimit
	case status == 400 || status == 404 || status == 422:
		llmErr.Type = ErrorInvalidInput
	case status >= 500:
		llmErr.Type = ErrorServerError
	case errors.Is(err, context.DeadlineExceeded):
		llmErr.Type = ErrorTimeout
	default:
		llmErr.Type = classifyMessage(strings.ToLower(err.Error()))
	}
	return llmErr
}

func classifyMessage(lower string) ErrorType {
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication"):
		return ErrorAuth
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit"):
		return ErrorRateLimit
	case strings.Contains(lower, "overloaded"):
		return ErrorServerError
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return ErrorTimeout
	case strings.Contains(lower, "connection") || strings.Contains(lower, "dns") || strings.Contains(lower, "refused"):
		return ErrorNetwork
	default:
		return ErrorUnknown
	}
}
