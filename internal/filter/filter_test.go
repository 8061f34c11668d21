package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/llm/llmtest"
	"deep-search-wiser/internal/prompt"
	"deep-search-wiser/internal/search"
)

func newTestFilter(t *testing.T, p *llmtest.Provider) *Filter {
	t.Helper()
	f, err := New(p, prompt.NewStore(config.PromptsConfig{}), config.Defaults().Filter)
	require.NoError(t, err)
	return f
}

func searchOutput(items ...search.Item) string {
	return search.Results{Query: "X açıklaması", Results: items}.String()
}

func TestFilterEmptyResultsSkipsLLM(t *testing.T) {
	p := llmtest.New()
	f := newTestFilter(t, p)

	for _, in := range []string{"", "   ", `{"query":"X","results":[]}`, "[]"} {
		r, err := f.Filter(context.Background(), in)
		require.NoError(t, err, in)
		assert.Equal(t, StatusNoNegativeContent, r.Status)
		assert.Empty(t, r.Items)
		assert.Contains(t, r.String(), `"items":[]`)
	}
	assert.Empty(t, p.Requests())
}

func TestFilterKeepsOnlyKeywordItems(t *testing.T) {
	p := llmtest.New("```json\n" + `[
		{"title": "X hakkında dava açıldı", "href": "https://a", "snippet": "Mahkeme süreci başladı", "keywords_found": ["dava"], "reason": "Hukuki süreç"},
		{"title": "X yeni ürün tanıttı", "href": "https://b", "snippet": "Lansman yapıldı", "keywords_found": ["skandal"], "reason": "Model yanıldı"}
	]` + "\n```")
	f := newTestFilter(t, p)

	r, err := f.Filter(context.Background(), searchOutput(
		search.Item{Title: "X hakkında dava açıldı", Href: "https://a", Snippet: "Mahkeme süreci başladı"},
		search.Item{Title: "X yeni ürün tanıttı", Href: "https://b", Snippet: "Lansman yapıldı"},
	))
	require.NoError(t, err)

	assert.Equal(t, StatusNegativeFound, r.Status)
	assert.Equal(t, "X açıklaması", r.Query)
	require.Len(t, r.Items, 1)
	assert.Equal(t, "X hakkında dava açıldı", r.Items[0].Title)
	assert.Equal(t, []string{"dava"}, r.Items[0].KeywordsFound)
	assert.Equal(t, "Hukuki süreç", r.Items[0].Reason)

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 0.0, reqs[0].Temperature)
	assert.Contains(t, reqs[0].Messages[0].Content, `"dava"`)
	assert.Contains(t, reqs[0].Messages[0].Content, "X hakkında dava açıldı")
}

func TestFilterNothingFlagged(t *testing.T) {
	f := newTestFilter(t, llmtest.New("[]"))
	r, err := f.Filter(context.Background(), searchOutput(search.Item{Title: "Olağan haber"}))
	require.NoError(t, err)
	assert.Equal(t, StatusNoNegativeContent, r.Status)
	assert.False(t, r.Negative())
}

func TestFilterRejectsInvalidOutput(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "Bu sonuçlarda olumsuz bir şey yok."},
		{"broken json", `[{"title": "x", "reason": }]`},
		{"missing reason", `[{"title": "dava"}]`},
		{"wrong type", `[{"title": "dava", "reason": "r", "keywords_found": "dava"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilter(t, llmtest.New(tt.reply))
			_, err := f.Filter(context.Background(), searchOutput(search.Item{Title: "dava"}))
			assert.Error(t, err)
		})
	}
}

func TestFilterLLMError(t *testing.T) {
	f := newTestFilter(t, llmtest.Script(llmtest.Fail(errors.New("connection refused"))))
	_, err := f.Filter(context.Background(), searchOutput(search.Item{Title: "dava"}))
	assert.ErrorContains(t, err, "connection refused")
}

func TestParseInput(t *testing.T) {
	q, items := ParseInput(searchOutput(search.Item{Title: "a"}, search.Item{}))
	assert.Equal(t, "X açıklaması", q)
	assert.Len(t, items, 1)

	_, items = ParseInput(`[{"title":"t","href":"h","snippet":"s"}]`)
	assert.Equal(t, []search.Item{{Title: "t", Href: "h", Snippet: "s"}}, items)

	_, items = ParseInput(`"X şirketine dava açıldı"`)
	assert.Equal(t, []search.Item{{Snippet: "X şirketine dava açıldı"}}, items)
}

func TestParseReport(t *testing.T) {
	in := Report{Status: StatusNegativeFound, Query: "q", Items: []Flagged{{Title: "t", Reason: "r", KeywordsFound: []string{"dava"}}}}
	out, ok := ParseReport(in.String())
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, ok = ParseReport(`{"status":"other"}`)
	assert.False(t, ok)
	_, ok = ParseReport("plain text")
	assert.False(t, ok)
}
