package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/llm/llmtest"
	"deep-search-wiser/internal/prompt"
	"deep-search-wiser/internal/tool"
)

func longHistory(n int) []history.Record {
	records := make([]history.Record, n)
	for i := range records {
		records[i] = history.Record{
			Prompt:   "soru " + strings.Repeat("a", 400),
			Response: "cevap " + strings.Repeat("b", 400),
		}
	}
	return records
}

func TestContextManagerSummarizesOlderTurns(t *testing.T) {
	provider := llmtest.New("Kullanıcı X şirketini sordu.")
	cm := newContextManager(provider, prompt.NewStore(config.PromptsConfig{}), 300)

	s := NewSession("", "yeni soru", longHistory(5), tool.NewRegistry())
	cm.prepare(context.Background(), s)

	assert.Equal(t, "Kullanıcı X şirketini sordu.", s.Summary)
	assert.Len(t, s.History, keepRecent)
	require.Len(t, provider.Requests(), 1)
	assert.Contains(t, provider.Requests()[0].Messages[0].Content, "soru aaaa")
	assert.Contains(t, s.chatHistory(), "Summary of earlier conversation: Kullanıcı X şirketini sordu.")
}

func TestContextManagerKeepsShortHistory(t *testing.T) {
	provider := llmtest.New()
	cm := newContextManager(provider, prompt.NewStore(config.PromptsConfig{}), 6000)

	s := NewSession("", "yeni soru", longHistory(3), tool.NewRegistry())
	cm.prepare(context.Background(), s)

	assert.Empty(t, s.Summary)
	assert.Len(t, s.History, 3)
	assert.Empty(t, provider.Requests())
}

func TestContextManagerDropsOlderTurnsOnFailure(t *testing.T) {
	provider := llmtest.Script(llmtest.Fail(errors.New("unavailable")))
	cm := newContextManager(provider, prompt.NewStore(config.PromptsConfig{}), 300)

	s := NewSession("", "yeni soru", longHistory(4), tool.NewRegistry())
	cm.prepare(context.Background(), s)

	assert.Empty(t, s.Summary)
	assert.Len(t, s.History, keepRecent)
}
