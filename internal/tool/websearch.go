package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/search"
)

// WebSearchTool runs a query against the configured search backend and
// returns the hits as a search.Results JSON document.
type WebSearchTool struct {
	name       string
	backend    search.Backend
	maxResults int
	log        *zap.Logger
}

// NewWebSearchTool creates the search tool. The tool name follows the backend
// so the model sees where results come from.
func NewWebSearchTool(backend search.Backend, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = search.DefaultMaxResults
	}
	return &WebSearchTool{
		name:       SearchToolName(backend.Name()),
		backend:    backend,
		maxResults: maxResults,
		log:        logger.Named("tool"),
	}
}

// SearchToolName maps a backend name to the tool name shown to the model.
func SearchToolName(backend string) string {
	switch backend {
	case "duckduckgo", "browser":
		return "DuckDuckGoSearch"
	case "news":
		return "NewsSearch"
	default:
		return "WebSearch"
	}
}

func (t *WebSearchTool) Name() string { return t.name }
func (t *WebSearchTool) Description() string {
	return "Web'de arama yapar, sonuçları JSON formatında döndürür (title, href, snippet). Girdi: arama sorgusu."
}

// searchRequest is the optional structured input: {"query": "...", "max_results": 3}.
type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (t *WebSearchTool) Execute(ctx context.Context, input string) (*Result, error) {
	query, max := t.parseInput(input)
	if query == "" {
		return errorResult(t.name, fmt.Errorf("query is required")), nil
	}

	items, err := t.backend.Search(ctx, query, max)
	if err != nil {
		logger.FromContext(ctx, t.log).Warn("search failed",
			zap.String("backend", t.backend.Name()), zap.String("query", query), zap.Error(err))
		return errorResult(t.name, err), nil
	}
	items = search.Normalize(items, max)

	return &Result{Output: search.Results{Query: query, Results: items}.String()}, nil
}

func (t *WebSearchTool) parseInput(input string) (string, int) {
	input = cleanInput(input)
	max := t.maxResults
	if strings.HasPrefix(input, "{") {
		var req searchRequest
		if err := json.Unmarshal([]byte(input), &req); err == nil && req.Query != "" {
			if req.MaxResults > 0 && req.MaxResults < max {
				max = req.MaxResults
			}
			return strings.TrimSpace(req.Query), max
		}
	}
	return input, max
}
