package agent

import (
	"context"

	"go.uber.org/zap"

	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/prompt"
)

// keepRecent is how many prior turns stay verbatim when history is condensed.
const keepRecent = 2

// contextManager keeps prior chat turns within budget, condensing older
// turns into a summary when they grow too long.
type contextManager struct {
	provider    llm.Provider
	prompts     *prompt.Store
	summarizeAt int
	log         *zap.Logger
}

func newContextManager(provider llm.Provider, prompts *prompt.Store, summarizeAt int) *contextManager {
	return &contextManager{
		provider:    provider,
		prompts:     prompts,
		summarizeAt: summarizeAt,
		log:         logger.Named("agent"),
	}
}

// estimateTokens provides a rough token estimate (4 chars ≈ 1 token).
func estimateTokens(records []history.Record) int {
	total := 0
	for _, r := range records {
		total += (len(r.Prompt) + len(r.Response)) / 4
	}
	return total
}

// shouldSummarize returns true if the prior turns exceed the budget.
func (cm *contextManager) shouldSummarize(records []history.Record) bool {
	return cm.summarizeAt > 0 && len(records) > keepRecent && estimateTokens(records) > cm.summarizeAt
}

// prepare fills s.Summary and trims s.History when needed. Failure to
// summarize only drops the older turns.
func (cm *contextManager) prepare(ctx context.Context, s *Session) {
	if !cm.shouldSummarize(s.History) {
		return
	}
	cutoff := len(s.History) - keepRecent
	older, recent := s.History[:cutoff], s.History[cutoff:]
	s.History = recent

	turns := make([]llm.Message, 0, 2*len(older))
	for _, r := range older {
		turns = append(turns,
			llm.Message{Role: llm.RoleUser, Content: r.Prompt},
			llm.Message{Role: llm.RoleAssistant, Content: r.Response},
		)
	}
	text, err := cm.prompts.Render(ctx, prompt.ConversationSummary, map[string]any{"turns": turns})
	if err == nil {
		var resp *llm.LLMResponse
		resp, err = cm.provider.Chat(ctx, &llm.ChatRequest{
			Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
			MaxTokens:    1024,
			Temperature:  0.3,
			SystemPrompt: "You are a conversation summarizer. Create a brief, factual summary.",
		})
		if err == nil {
			s.Summary = resp.Content
		}
	}
	if err != nil {
		logger.FromContext(ctx, cm.log).Warn("history summarization failed, dropping older turns", zap.Error(err))
	}
}
