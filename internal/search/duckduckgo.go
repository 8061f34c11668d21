package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"deep-search-wiser/internal/logger"
)

const (
	duckDuckGoHTMLURL = "https://html.duckduckgo.com/html/"
	userAgent         = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes      = 2 << 20
)

// DuckDuckGoConfig configures the DuckDuckGo HTML backend.
type DuckDuckGoConfig struct {
	BaseURL string
	Region  string // kl parameter, e.g. "tr-tr"
	Timeout time.Duration
}

// DuckDuckGo scrapes the JavaScript-free DuckDuckGo results page.
type DuckDuckGo struct {
	baseURL string
	region  string
	client  *http.Client
	log     *zap.Logger
}

// NewDuckDuckGo creates a DuckDuckGo HTML backend.
func NewDuckDuckGo(cfg DuckDuckGoConfig) *DuckDuckGo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = duckDuckGoHTMLURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &DuckDuckGo{
		baseURL: cfg.BaseURL,
		region:  cfg.Region,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logger.Named("search"),
	}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, max int) ([]Item, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	form := url.Values{"q": {query}}
	if d.region != "" {
		form.Set("kl", d.region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	items, err := parseDuckDuckGoHTML(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	items = Normalize(items, max)

	logger.FromContext(ctx, d.log).Debug("duckduckgo search completed",
		zap.String("query", query), zap.Int("result_count", len(items)))
	return items, nil
}

func parseDuckDuckGoHTML(r io.Reader) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var items []Item
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		items = append(items, Item{
			Title:   link.Text(),
			Href:    resolveDuckDuckGoLink(href),
			Snippet: s.Find(".result__snippet").First().Text(),
		})
	})
	return items, nil
}

// resolveDuckDuckGoLink unwraps the //duckduckgo.com/l/?uddg=<target> redirect.
func resolveDuckDuckGoLink(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
