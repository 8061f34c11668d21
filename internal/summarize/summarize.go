// Package summarize turns a negative-content report into a short Turkish
// bullet list.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/filter"
	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/prompt"
)

// NoNegativeContent is returned for reports without flagged items.
const NoNegativeContent = "Negatif içerik bulunamadı."

// Summarizer summarizes filter output.
type Summarizer struct {
	provider    llm.Provider
	prompts     *prompt.Store
	temperature float64
	maxTokens   int
	log         *zap.Logger
}

// New creates a summarizer.
func New(provider llm.Provider, prompts *prompt.Store, cfg config.SummarizerConfig) *Summarizer {
	return &Summarizer{
		provider:    provider,
		prompts:     prompts,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		log:         logger.Named("summarize"),
	}
}

// Summarize returns prose for input, which is normally a filter.Report.
// Other text is summarized as given.
func (s *Summarizer) Summarize(ctx context.Context, input string) (string, error) {
	payload := strings.TrimSpace(input)
	if report, ok := filter.ParseReport(payload); ok {
		if !report.Negative() {
			return NoNegativeContent, nil
		}
		// Only the flagged items go to the model.
		payload = report.ItemsJSON()
	} else if payload == "" || payload == "[]" {
		return NoNegativeContent, nil
	}

	text, err := s.prompts.Render(ctx, prompt.Summarize, map[string]any{"negative_json": payload})
	if err != nil {
		return "", err
	}
	resp, err := s.provider.Chat(ctx, llm.Prompt(text, s.temperature, s.maxTokens))
	if err != nil {
		return "", fmt.Errorf("llm call failed: %w", err)
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	logger.FromContext(ctx, s.log).Debug("summary produced", zap.Int("chars", len(out)))
	return out, nil
}
