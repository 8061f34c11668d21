package llm

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolCall represents an LLM request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// LLMResponse is the response from an LLM provider.
type LLMResponse struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Usage      Usage      `json:"usage"`
	StopReason string     `json:"stop_reason"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatRequest is the input for a chat completion. Temperature is always sent,
// so a zero value asks for deterministic output.
type ChatRequest struct {
	Model        string           `json:"model"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	MaxTokens    int              `json:"max_tokens"`
	Temperature  float64          `json:"temperature"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
}

// Prompt builds a single-turn request from a rendered prompt string.
func Prompt(prompt string, temperature float64, maxTokens int) *ChatRequest {
	return &ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// ErrorType classifies LLM errors for fallback decisions.
type ErrorType int

const (
	ErrorUnknown      ErrorType = iota
	ErrorRateLimit              // 429
	ErrorAuth                   // 401/403
	ErrorInvalidInput           // 400
	ErrorServerError            // 500+
	ErrorTimeout                // context deadline exceeded
	ErrorNetwork                // connection refused, DNS, etc.
)

func (t ErrorType) String() string {
	switch t {
	case ErrorRateLimit:
		return "rate_limit"
	case ErrorAuth:
		return "auth"
	case ErrorInvalidInput:
		return "invalid_input"
	case ErrorServerError:
		return "server_error"
	case ErrorTimeout:
		return "timeout"
	case ErrorNetwork:
		return "network"
	default:
		return "unknown"
	}
}
