package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// generateContenter is the slice of the genai Models service used here.
type generateContenter interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider implements Provider using the Google Gemini API.
// Only text generation is wired; the agent drives Gemini through ReAct text.
type GeminiProvider struct {
	models       generateContenter
	defaultModel string
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiProvider(client.Models, cfg.Model), nil
}

func newGeminiProvider(models generateContenter, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{models: models, defaultModel: model}
}

func (p *GeminiProvider) Name() string        { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.defaultModel }

func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		default:
			// tool results are replayed as user text
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(strings.Join(system, "\n\n"))}}
	}

	resp, err := p.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, &LLMError{Type: ErrorInvalidInput, Message: "gemini returned no candidates"}
	}

	result := &LLMResponse{
		Content:    resp.Text(),
		StopReason: string(resp.Candidates[0].FinishReason),
	}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return result, nil
}

func classifyGeminiError(err error) *LLMError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classify(err, apiErr.Code)
	}
	return classify(err, 0)
}
