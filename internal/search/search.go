// Package search queries web-search backends and normalises their hits into
// the {title, href, snippet} items the agent tools exchange.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"deep-search-wiser/internal/config"
)

// DefaultMaxResults bounds a search when the caller gives no count.
const DefaultMaxResults = 5

// Item is a single search hit.
type Item struct {
	Title   string `json:"title"`
	Href    string `json:"href"`
	Snippet string `json:"snippet"`
}

// Results is the JSON document the search tool returns.
type Results struct {
	Query   string `json:"query"`
	Results []Item `json:"results"`
}

// String encodes r as JSON without HTML escaping, so Turkish text and URLs
// stay readable to the model.
func (r Results) String() string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if r.Results == nil {
		r.Results = []Item{}
	}
	if err := enc.Encode(r); err != nil {
		return fmt.Sprintf(`{"query":%q,"results":[]}`, r.Query)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Backend is a web-search provider.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, max int) ([]Item, error)
}

// Closer is implemented by backends holding resources such as a browser.
type Closer interface {
	Close() error
}

// Normalize trims whitespace, drops items with neither title nor snippet and
// returns at most max items.
func Normalize(items []Item, max int) []Item {
	if max <= 0 {
		max = DefaultMaxResults
	}
	out := lo.FilterMap(items, func(it Item, _ int) (Item, bool) {
		it.Title = collapseSpace(it.Title)
		it.Snippet = collapseSpace(it.Snippet)
		it.Href = strings.TrimSpace(it.Href)
		return it, it.Title != "" || it.Snippet != ""
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// FirstNonEmpty picks the snippet text from the candidate fields in order.
func FirstNonEmpty(values ...string) string {
	v, _ := lo.Find(values, func(s string) bool { return strings.TrimSpace(s) != "" })
	return v
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// New creates the backend selected by cfg.Backend.
func New(cfg config.SearchConfig) (Backend, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	switch cfg.Backend {
	case "", "duckduckgo":
		return NewDuckDuckGo(DuckDuckGoConfig{BaseURL: cfg.BaseURL, Region: cfg.Region, Timeout: timeout}), nil
	case "browser":
		return NewBrowser(BrowserConfig{Region: cfg.Region, Headless: cfg.Headless, Timeout: timeout}), nil
	case "news":
		return NewNews(NewsConfig{BaseURL: cfg.BaseURL, Region: cfg.Region, Language: cfg.Language, Timeout: timeout}), nil
	case "firecrawl":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("firecrawl backend requires search.api_key")
		}
		return NewFirecrawl(FirecrawlConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Timeout: timeout}), nil
	default:
		return nil, fmt.Errorf("unknown search backend: %q", cfg.Backend)
	}
}
