package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
// Also works with compatible APIs (Ollama, LM Studio, vLLM, OpenRouter) via BaseURL.
type OpenAIProvider struct {
	client       openai.Client
	name         string
	defaultModel string
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	// Name is reported by Name(); it defaults to "openai".
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &OpenAIProvider{
		client:       openai.NewClient(opts...),
		name:         name,
		defaultModel: model,
	}
}

func (p *OpenAIProvider) Name() string        { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }
func (p *OpenAIProvider) SupportsTools() bool  { return true }

func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    openAIMessages(req),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if tools := openAITools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	return fromOpenAI(resp), nil
}

func openAIMessages(req *ChatRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(m.Content))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			if m.Content != "" {
				asst.Content.OfString = openai.String(m.Content)
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case RoleTool:
			msgs = append(msgs, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return msgs
}

// openAITools converts definitions; a schema that does not decode is sent
// without parameters rather than failing the request.
func openAITools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, t := range tools {
		var params openai.FunctionParameters
		if len(t.Parameters) > 0 && json.Unmarshal(t.Parameters, &params) != nil {
			params = nil
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		})
	}
	return result
}

func fromOpenAI(resp *openai.ChatCompletion) *LLMResponse {
	result := &LLMResponse{
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.Content = choice.Message.Content
		result.StopReason = string(choice.FinishReason)

		for _, tc := range choice.Message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}

	return result
}

func classifyOpenAIError(err error) *LLMError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classify(err, apiErr.StatusCode)
	}
	return classify(err, 0)
}
