package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/tool"
)

const nativeSystemPrompt = `You screen people and companies for negative news.
Work with the tools: first search for the subject, then pass the search output to NegativeFilter, then pass the filter output to SummarizeNegativeNews.
Call one tool at a time. When you have the summary, reply with the final answer as plain text in the language of the question.`

// NativeDecider uses the provider's tool-calling API instead of text parsing.
type NativeDecider struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

// NewNativeDecider creates a tool-calling decider. The provider must support
// tools (see llm.SupportsTools).
func NewNativeDecider(provider llm.Provider, temperature float64, maxTokens int) *NativeDecider {
	return &NativeDecider{provider: provider, temperature: temperature, maxTokens: maxTokens}
}

func (d *NativeDecider) Name() string { return "native" }

func (d *NativeDecider) Decide(ctx context.Context, s *Session) (Decision, error) {
	req := &llm.ChatRequest{
		SystemPrompt: nativeSystemPrompt,
		Messages:     nativeMessages(s),
		Tools:        s.Tools.Definitions(),
		MaxTokens:    d.maxTokens,
		Temperature:  d.temperature,
	}
	resp, err := d.provider.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM error: %w", err)
	}

	if len(resp.ToolCalls) > 0 {
		// One call per step; extra parallel calls are not answered and so
		// are not replayed either.
		tc := resp.ToolCalls[0]
		return Action{
			Tool:    tc.Name,
			Input:   tool.InputFromArguments(tc.Arguments),
			Thought: strings.TrimSpace(resp.Content),
			CallID:  tc.ID,
			Log:     resp.Content,
		}, nil
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return nil, &ParseError{Output: resp.Content, Reason: "empty response: call a tool or give the final answer"}
	}
	return Finish{Answer: answer}, nil
}

// nativeMessages rebuilds the conversation from the session: prior turns,
// the question, then one assistant tool call and tool result per step.
func nativeMessages(s *Session) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(s.History)+2*len(s.Steps)+2)
	if s.Summary != "" {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: "[Previous conversation summary]: " + s.Summary},
			llm.Message{Role: llm.RoleAssistant, Content: "I understand the previous context."},
		)
	}
	for _, r := range s.History {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: r.Prompt},
			llm.Message{Role: llm.RoleAssistant, Content: r.Response},
		)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: s.Input})

	for _, st := range s.Steps {
		if st.ParseError {
			if st.Action.Log != "" {
				msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: st.Action.Log})
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: st.Observation})
			continue
		}
		args, _ := json.Marshal(tool.Arguments{Input: st.Action.Input})
		msgs = append(msgs,
			llm.Message{
				Role:      llm.RoleAssistant,
				Content:   st.Action.Log,
				ToolCalls: []llm.ToolCall{{ID: st.Action.CallID, Name: st.Action.Tool, Arguments: args}},
			},
			llm.Message{Role: llm.RoleTool, Content: st.Observation, ToolCallID: st.Action.CallID},
		)
	}
	return msgs
}
