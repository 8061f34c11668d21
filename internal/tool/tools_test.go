package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deep-search-wiser/internal/filter"
	"deep-search-wiser/internal/search"
)

type fakeBackend struct {
	items    []search.Item
	err      error
	gotQuery string
	gotMax   int
}

func (f *fakeBackend) Name() string { return "duckduckgo" }
func (f *fakeBackend) Search(_ context.Context, query string, max int) ([]search.Item, error) {
	f.gotQuery, f.gotMax = query, max
	return f.items, f.err
}

func TestWebSearchTool(t *testing.T) {
	backend := &fakeBackend{items: []search.Item{
		{Title: "a"}, {Title: "b"}, {}, {Snippet: "c"}, {Title: "d"},
	}}
	st := NewWebSearchTool(backend, 3)
	assert.Equal(t, "DuckDuckGoSearch", st.Name())

	res, err := st.Execute(context.Background(), `"X açıklaması"`)
	require.NoError(t, err)
	require.False(t, res.IsError, res.Error)
	assert.Equal(t, "X açıklaması", backend.gotQuery)
	assert.Equal(t, 3, backend.gotMax)

	var out search.Results
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
	assert.Equal(t, "X açıklaması", out.Query)
	assert.Len(t, out.Results, 3)
}

func TestWebSearchToolStructuredInput(t *testing.T) {
	backend := &fakeBackend{}
	st := NewWebSearchTool(backend, 5)
	res, err := st.Execute(context.Background(), `{"query": "X", "max_results": 2}`)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "X", backend.gotQuery)
	assert.Equal(t, 2, backend.gotMax)
	assert.JSONEq(t, `{"query":"X","results":[]}`, res.Output)
}

func TestWebSearchToolErrors(t *testing.T) {
	st := NewWebSearchTool(&fakeBackend{err: errors.New("status 403")}, 5)
	res, err := st.Execute(context.Background(), "X")
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "DuckDuckGoSearch error: status 403", res.Error)

	res, _ = st.Execute(context.Background(), `  ""  `)
	assert.True(t, res.IsError)
}

func TestSearchToolName(t *testing.T) {
	assert.Equal(t, "DuckDuckGoSearch", SearchToolName("browser"))
	assert.Equal(t, "NewsSearch", SearchToolName("news"))
	assert.Equal(t, "WebSearch", SearchToolName("firecrawl"))
}

type fakeFilter struct {
	report filter.Report
	err    error
}

func (f fakeFilter) Filter(context.Context, string) (filter.Report, error) { return f.report, f.err }

func TestNegativeFilterTool(t *testing.T) {
	ft := NewNegativeFilterTool(fakeFilter{report: filter.Report{Status: filter.StatusNoNegativeContent}})
	res, err := ft.Execute(context.Background(), "[]")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"no_negative_content","items":[]}`, res.Output)

	ft = NewNegativeFilterTool(fakeFilter{err: errors.New("invalid JSON from model")})
	res, err = ft.Execute(context.Background(), "[]")
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "NegativeFilter error: invalid JSON from model", res.Error)
}

type summarizerFunc func(context.Context, string) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, in string) (string, error) { return f(ctx, in) }

func TestSummarizeTool(t *testing.T) {
	st := NewSummarizeTool(summarizerFunc(func(_ context.Context, in string) (string, error) {
		return "- " + in, nil
	}))
	res, err := st.Execute(context.Background(), "'x'")
	require.NoError(t, err)
	assert.Equal(t, "- x", res.Output)

	st = NewSummarizeTool(summarizerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("timeout")
	}))
	res, _ = st.Execute(context.Background(), "x")
	assert.Equal(t, "Summarizer error: timeout", res.Error)
}

func TestNewSearchRegistry(t *testing.T) {
	r, err := NewSearchRegistry(
		NewWebSearchTool(&fakeBackend{}, 5),
		NewNegativeFilterTool(fakeFilter{}),
		NewSummarizeTool(summarizerFunc(func(context.Context, string) (string, error) { return "", nil })),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"DuckDuckGoSearch", "NegativeFilter", "SummarizeNegativeNews"}, r.Names())
}
