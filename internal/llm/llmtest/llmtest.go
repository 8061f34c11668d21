// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"deep-search-wiser/internal/llm"
)

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Reply is one scripted answer.
type Reply struct {
	Response *llm.LLMResponse
	Err      error
}

// Text is a Reply carrying plain assistant content.
func Text(content string) Reply {
	return Reply{Response: &llm.LLMResponse{Content: content, StopReason: "stop"}}
}

// Calls is a Reply carrying native tool calls.
func Calls(calls ...llm.ToolCall) Reply {
	return Reply{Response: &llm.LLMResponse{ToolCalls: calls, StopReason: "tool_calls"}}
}

// Fail is a Reply that returns err.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Provider answers requests from a fixed script and records every request.
type Provider struct {
	ProviderName string
	Tools        bool

	mu       sync.Mutex
	replies  []Reply
	requests []*llm.ChatRequest
}

// New returns a provider that replies with the given texts in order.
func New(texts ...string) *Provider {
	p := &Provider{ProviderName: "scripted"}
	for _, t := range texts {
		p.replies = append(p.replies, Text(t))
	}
	return p
}

// Script returns a provider that replies with rs in order.
func Script(rs ...Reply) *Provider {
	return &Provider{ProviderName: "scripted", replies: rs}
}

func (p *Provider) Name() string         { return p.ProviderName }
func (p *Provider) DefaultModel() string { return "scripted-model" }
func (p *Provider) SupportsTools() bool  { return p.Tools }

func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	p.requests = append(p.requests, &cp)

	if len(p.replies) == 0 {
		return nil, ErrExhausted
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r.Response, r.Err
}

// Requests returns copies of the requests received so far.
func (p *Provider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// Remaining reports how many scripted replies are left.
func (p *Provider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.replies)
}
