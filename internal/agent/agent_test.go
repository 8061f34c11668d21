package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/eventbus"
	"deep-search-wiser/internal/filter"
	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/llm/llmtest"
	"deep-search-wiser/internal/prompt"
	"deep-search-wiser/internal/search"
	"deep-search-wiser/internal/summarize"
	"deep-search-wiser/internal/tool"
)

type fakeBackend struct {
	items   []search.Item
	queries []string
}

func (f *fakeBackend) Name() string { return "duckduckgo" }
func (f *fakeBackend) Search(_ context.Context, query string, _ int) ([]search.Item, error) {
	f.queries = append(f.queries, query)
	return f.items, nil
}

type fixture struct {
	provider *llmtest.Provider
	backend  *fakeBackend
	store    history.Store
	bus      *eventbus.Bus
	agent    *Agent
}

func newFixture(t *testing.T, provider *llmtest.Provider, mutate func(*config.AgentConfig)) *fixture {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg.Agent)
	}

	prompts := prompt.NewStore(cfg.Prompts)
	f, err := filter.New(provider, prompts, cfg.Filter)
	require.NoError(t, err)
	s := summarize.New(provider, prompts, cfg.Summarizer)

	backend := &fakeBackend{items: []search.Item{
		{Title: "X hakkında dava açıldı", Href: "https://example.com/a", Snippet: "Şirket aleyhine dava açıldı."},
		{Title: "X yeni ürününü tanıttı", Href: "https://example.com/b", Snippet: "Lansman yapıldı."},
	}}
	tools, err := tool.NewSearchRegistry(
		tool.NewWebSearchTool(backend, cfg.Search.MaxResults),
		tool.NewNegativeFilterTool(f),
		tool.NewSummarizeTool(s),
	)
	require.NoError(t, err)

	store := history.NewJSONStore(filepath.Join(t.TempDir(), "chat_history.json"))
	bus := eventbus.New()
	return &fixture{
		provider: provider,
		backend:  backend,
		store:    store,
		bus:      bus,
		agent:    New(cfg.Agent, provider, prompts, tools, store, bus),
	}
}

const searchOutput = `{"query":"X açıklaması","results":[` +
	`{"title":"X hakkında dava açıldı","href":"https://example.com/a","snippet":"Şirket aleyhine dava açıldı."},` +
	`{"title":"X yeni ürününü tanıttı","href":"https://example.com/b","snippet":"Lansman yapıldı."}]}`

func TestRunScreensSubject(t *testing.T) {
	summary := "- X hakkında dava açıldı: Şirket aleyhine dava haberi."
	provider := llmtest.New(
		"Thought: I need to search first\nAction: DuckDuckGoSearch\nAction Input: X açıklaması",
		"Thought: Now filter the results\nAction: NegativeFilter\nAction Input: "+searchOutput,
		// filter model call
		`[{"title":"X hakkında dava açıldı","href":"https://example.com/a","snippet":"Şirket aleyhine dava açıldı.","reason":"Şirket aleyhine dava haberi."}]`,
		"Thought: Summarize the negative items\nAction: SummarizeNegativeNews\nAction Input: "+
			`{"status":"negative_found","items":[{"title":"X hakkında dava açıldı","href":"https://example.com/a","snippet":"Şirket aleyhine dava açıldı.","keywords_found":["dava"],"reason":"Şirket aleyhine dava haberi."}]}`,
		// summarizer model call
		summary,
		"Thought: I now know the final answer\nFinal Answer: "+summary,
	)
	fx := newFixture(t, provider, nil)

	var mu sync.Mutex
	var topics []eventbus.Topic
	fx.bus.Subscribe(func(e eventbus.Event) {
		mu.Lock()
		topics = append(topics, e.Topic)
		mu.Unlock()
	}, eventbus.AllTopics...)

	res, err := fx.agent.Run(context.Background(), "", "X açıklaması")
	require.NoError(t, err)
	assert.Equal(t, summary, res.Answer)
	assert.NotEmpty(t, res.SessionID)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, []string{"X açıklaması"}, fx.backend.queries)

	assert.Equal(t, "DuckDuckGoSearch", res.Steps[0].Action.Tool)
	assert.JSONEq(t, searchOutput, res.Steps[0].Observation)

	report, ok := filter.ParseReport(res.Steps[1].Observation)
	require.True(t, ok, res.Steps[1].Observation)
	assert.Equal(t, filter.StatusNegativeFound, report.Status)
	require.Len(t, report.Items, 1)
	assert.Equal(t, []string{"dava"}, report.Items[0].KeywordsFound)

	assert.Equal(t, summary, res.Steps[2].Observation)
	assert.Zero(t, provider.Remaining())

	reqs := provider.Requests()
	require.Len(t, reqs, 6)
	assert.Equal(t, 0.7, reqs[0].Temperature)
	assert.Equal(t, 0.0, reqs[2].Temperature)
	assert.Equal(t, 0.2, reqs[4].Temperature)
	last := reqs[5].Messages[0].Content
	assert.Contains(t, last, "Question: X açıklaması")
	assert.Contains(t, last, "Observation: "+summary)

	records, err := fx.store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []history.Record{{Prompt: "X açıklaması", Response: summary}}, records)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, eventbus.TopicMessageStart, topics[0])
	assert.Equal(t, eventbus.TopicAgentFinish, topics[len(topics)-1])
	assert.Contains(t, topics, eventbus.TopicAgentObserve)
}

func TestRunUnknownTool(t *testing.T) {
	provider := llmtest.New(
		"Thought: search\nAction: GoogleSearch\nAction Input: X",
		"Final Answer: "+summarize.NoNegativeContent,
	)
	fx := newFixture(t, provider, nil)

	res, err := fx.agent.Run(context.Background(), "", "X")
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.True(t, res.Steps[0].IsError)
	assert.Equal(t,
		"GoogleSearch is not a valid tool, try one of [DuckDuckGoSearch, NegativeFilter, SummarizeNegativeNews].",
		res.Steps[0].Observation)
	assert.Empty(t, fx.backend.queries)
	assert.Equal(t, summarize.NoNegativeContent, res.Answer)
}

func TestRunRecoversFromParseError(t *testing.T) {
	provider := llmtest.New(
		"I think the answer is obvious",
		"Thought: I now know the final answer\nFinal Answer: tamam",
	)
	fx := newFixture(t, provider, nil)

	res, err := fx.agent.Run(context.Background(), "", "X")
	require.NoError(t, err)
	assert.Equal(t, "tamam", res.Answer)
	require.Len(t, res.Steps, 1)
	assert.True(t, res.Steps[0].ParseError)
	assert.Equal(t, "Invalid Format: Missing 'Action:' after 'Thought:'", res.Steps[0].Observation)

	second := provider.Requests()[1].Messages[0].Content
	assert.Contains(t, second, "I think the answer is obvious\nObservation: Invalid Format")
}

func TestRunParseErrorBudget(t *testing.T) {
	provider := llmtest.New("no format", "still no format", "never")
	fx := newFixture(t, provider, func(c *config.AgentConfig) { c.MaxParseErrors = 2 })

	_, err := fx.agent.Run(context.Background(), "", "X")
	require.ErrorIs(t, err, ErrParseLimit)
	assert.Zero(t, provider.Remaining())

	records, err := fx.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunStepLimit(t *testing.T) {
	action := "Action: DuckDuckGoSearch\nAction Input: X"
	provider := llmtest.New(action, action, action)
	fx := newFixture(t, provider, func(c *config.AgentConfig) { c.MaxSteps = 2 })

	_, err := fx.agent.Run(context.Background(), "", "X")
	require.ErrorIs(t, err, ErrStepLimit)
	assert.Len(t, fx.backend.queries, 2)
	assert.Equal(t, 1, provider.Remaining())

	records, err := fx.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunLLMErrorIsNotRecorded(t *testing.T) {
	provider := llmtest.Script(llmtest.Fail(&llm.LLMError{Type: llm.ErrorServerError, Message: "boom"}))
	fx := newFixture(t, provider, nil)

	var failed []eventbus.AgentStep
	fx.bus.Subscribe(func(e eventbus.Event) {
		failed = append(failed, e.Payload.(eventbus.AgentStep))
	}, eventbus.TopicError)

	_, err := fx.agent.Run(context.Background(), "", "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM error: boom")
	require.Len(t, failed, 1)
	assert.True(t, failed[0].IsError)

	records, err := fx.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunUsesChatHistory(t *testing.T) {
	provider := llmtest.New("Final Answer: ikinci")
	fx := newFixture(t, provider, nil)
	ctx := context.Background()
	require.NoError(t, fx.store.Append(ctx, history.Record{Prompt: "ilk soru", Response: "ilk cevap", Chat: "42"}))
	require.NoError(t, fx.store.Append(ctx, history.Record{Prompt: "başka", Response: "sohbet", Chat: "7"}))

	res, err := fx.agent.HandleDirectMessage(ctx, "42", "ikinci soru")
	require.NoError(t, err)
	assert.Equal(t, "ikinci", res)

	text := provider.Requests()[0].Messages[0].Content
	assert.Contains(t, text, "Human: ilk soru\nAI: ilk cevap")
	assert.NotContains(t, text, "başka")

	records, err := fx.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, history.Record{Prompt: "ikinci soru", Response: "ikinci", Chat: "42"}, records[2])
}

func TestRunNativeDecider(t *testing.T) {
	provider := llmtest.Script(
		llmtest.Calls(llm.ToolCall{ID: "call_1", Name: "DuckDuckGoSearch", Arguments: []byte(`{"input":"X açıklaması"}`)}),
		llmtest.Text("Negatif içerik bulunamadı."),
	)
	provider.Tools = true
	fx := newFixture(t, provider, func(c *config.AgentConfig) { c.Decider = "native" })
	assert.Equal(t, "native", fx.agent.Decider().Name())

	res, err := fx.agent.Run(context.Background(), "", "X açıklaması")
	require.NoError(t, err)
	assert.Equal(t, "Negatif içerik bulunamadı.", res.Answer)
	assert.Equal(t, []string{"X açıklaması"}, fx.backend.queries)

	reqs := provider.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Tools, 3)
	msgs := reqs[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "call_1", msgs[1].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleTool, msgs[2].Role)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.True(t, strings.HasPrefix(msgs[2].Content, `{"query":"X açıklaması"`))
}

func TestNativeDeciderNeedsToolSupport(t *testing.T) {
	fx := newFixture(t, llmtest.New(), func(c *config.AgentConfig) { c.Decider = "native" })
	assert.Equal(t, "react", fx.agent.Decider().Name())
}

func TestNativeDeciderEmptyResponse(t *testing.T) {
	provider := llmtest.New("")
	provider.Tools = true
	d := NewNativeDecider(provider, 0, 100)

	_, err := d.Decide(context.Background(), NewSession("", "X", nil, tool.NewRegistry()))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestRunCanceled(t *testing.T) {
	fx := newFixture(t, llmtest.New("Final Answer: x"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.agent.Run(ctx, "", "X")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab\n... (truncated)", truncate("abcdef", 2))
	// never splits a multi-byte rune
	assert.Equal(t, "ç\n... (truncated)", truncate("çğ", 3))
	assert.Equal(t, "anything", truncate("anything", 0))
}
