// Package tool defines the text-in/text-out tools the agent can call.
package tool

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool is the interface for agent tools. Input and output are plain text.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input string) (*Result, error)
}

// Result is the output of a tool execution.
type Result struct {
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
	IsError bool   `json:"is_error"`
}

// errorResult builds an error result whose message starts with "<prefix> error:".
func errorResult(prefix string, err error) *Result {
	return &Result{Error: prefix + " error: " + err.Error(), IsError: true}
}

// Observation is the text the agent sees for r.
func (r *Result) Observation() string {
	if r == nil {
		return ""
	}
	if r.IsError {
		return "Error: " + r.Error
	}
	return r.Output
}

// Arguments is the object native tool calls send: {"input": "..."}.
type Arguments struct {
	Input string `json:"input" jsonschema:"required,description=The text input for the tool"`
}

// InputFromArguments extracts the tool input from native call arguments. Bare
// JSON strings and non-object payloads are passed through as text.
func InputFromArguments(raw json.RawMessage) string {
	var args Arguments
	if err := json.Unmarshal(raw, &args); err == nil && args.Input != "" {
		return args.Input
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// cleanInput strips the quoting models tend to wrap Action Input in.
func cleanInput(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
