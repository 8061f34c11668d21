package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"deep-search-wiser/internal/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{"openai", "openai"},
		{"openrouter", "openrouter"},
		{"local", "local"},
		{"anthropic", "anthropic"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(context.Background(), config.LLMConfig{Provider: tt.provider, APIKey: "k", Model: "m"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
			assert.Equal(t, "m", p.DefaultModel())
			assert.True(t, SupportsTools(p))
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), config.LLMConfig{Provider: "nope"})
	assert.Error(t, err)
}

func TestNewProviderChainSkipsEmptyFallback(t *testing.T) {
	p, err := NewProviderChain(context.Background(),
		config.LLMConfig{Provider: "openai", APIKey: "k"},
		&config.LLMConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProviderChain(context.Background(),
		config.LLMConfig{Provider: "openai", APIKey: "k"},
		&config.LLMConfig{Provider: "anthropic", APIKey: "k2"})
	require.NoError(t, err)
	assert.Equal(t, "openai+fallback", p.Name())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   ErrorType
	}{
		{"unauthorized", errors.New("x"), 401, ErrorAuth},
		{"rate", errors.New("x"), 429, ErrorRateLimit},
		{"bad request", errors.New("x"), 400, ErrorInvalidInput},
		{"server", errors.New("x"), 503, ErrorServerError},
		{"deadline", context.DeadlineExceeded, 0, ErrorTimeout},
		{"overloaded text", errors.New("Overloaded"), 0, ErrorServerError},
		{"refused", errors.New("dial tcp: connection refused"), 0, ErrorNetwork},
		{"other", errors.New("???"), 0, ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err, tt.status).Type)
		})
	}
}

type fakeModels struct {
	gotModel  string
	gotConfig *genai.GenerateContentConfig
	gotTurns  []*genai.Content
	resp      *genai.GenerateContentResponse
	err       error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotTurns, f.gotConfig = model, contents, cfg
	return f.resp, f.err
}

func TestGeminiChat(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "merhaba"}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 2},
	}}
	p := newGeminiProvider(fake, "")
	assert.Equal(t, "gemini-2.0-flash", p.DefaultModel())
	assert.False(t, SupportsTools(p))

	resp, err := p.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "again"},
		},
		Temperature: 0.2,
		MaxTokens:   64,
	})
	require.NoError(t, err)
	assert.Equal(t, "merhaba", resp.Content)
	assert.Equal(t, 3, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)

	assert.Equal(t, "gemini-2.0-flash", fake.gotModel)
	require.Len(t, fake.gotTurns, 3)
	assert.Equal(t, "model", fake.gotTurns[1].Role)
	require.NotNil(t, fake.gotConfig.Temperature)
	assert.InDelta(t, 0.2, *fake.gotConfig.Temperature, 1e-6)
	assert.Equal(t, int32(64), fake.gotConfig.MaxOutputTokens)
	require.NotNil(t, fake.gotConfig.SystemInstruction)
	assert.Equal(t, "be brief", fake.gotConfig.SystemInstruction.Parts[0].Text)
}

func TestGeminiErrorIsClassified(t *testing.T) {
	p := newGeminiProvider(&fakeModels{err: genai.APIError{Code: 429, Message: "quota"}}, "g")
	_, err := p.Chat(context.Background(), Prompt("x", 0, 1))
	var llmErr *LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, ErrorRateLimit, llmErr.Type)
}
