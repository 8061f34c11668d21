package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"deep-search-wiser/internal/logger"
)

// FirecrawlConfig configures the Firecrawl search backend.
type FirecrawlConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Firecrawl searches through the Firecrawl v2 REST API.
type Firecrawl struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

// NewFirecrawl creates a Firecrawl backend.
func NewFirecrawl(cfg FirecrawlConfig) *Firecrawl {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.firecrawl.dev/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Firecrawl{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logger.Named("search"),
	}
}

func (f *Firecrawl) Name() string { return "firecrawl" }

type firecrawlSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type firecrawlSearchResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Web  []firecrawlResult `json:"web,omitempty"`
		News []firecrawlResult `json:"news,omitempty"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type firecrawlResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
	Markdown    string `json:"markdown,omitempty"`
}

func (f *Firecrawl) Search(ctx context.Context, query string, max int) ([]Item, error) {
	if max <= 0 {
		max = DefaultMaxResults
	}
	body, err := json.Marshal(firecrawlSearchRequest{Query: query, Limit: max})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	f.log.Debug("firecrawl response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(raw)))

	var sr firecrawlSearchResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if !sr.Success {
		msg := sr.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("firecrawl search failed: %s", msg)
	}

	var items []Item
	if sr.Data != nil {
		for _, r := range append(sr.Data.Web, sr.Data.News...) {
			items = append(items, Item{
				Title:   r.Title,
				Href:    r.URL,
				Snippet: FirstNonEmpty(r.Description, r.Snippet, r.Markdown),
			})
		}
	}
	items = Normalize(items, max)

	logger.FromContext(ctx, f.log).Info("firecrawl search completed",
		zap.String("query", query), zap.Int("result_count", len(items)))
	return items, nil
}
