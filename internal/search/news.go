package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"deep-search-wiser/internal/logger"
)

const googleNewsRSSURL = "https://news.google.com/rss/search"

// NewsConfig configures the Google News RSS backend.
type NewsConfig struct {
	BaseURL  string
	Region   string // "tr-tr" -> gl=TR
	Language string // hl parameter
	Timeout  time.Duration
}

// News searches the Google News RSS feed, which suits negative-news
// screening better than general web results.
type News struct {
	baseURL string
	params  url.Values
	parser  *gofeed.Parser
	timeout time.Duration
	log     *zap.Logger
}

// NewNews creates a Google News RSS backend.
func NewNews(cfg NewsConfig) *News {
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleNewsRSSURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	lang := cfg.Language
	if lang == "" {
		lang = "tr"
	}
	country := "TR"
	if parts := strings.SplitN(cfg.Region, "-", 2); len(parts) == 2 && parts[0] != "" {
		country = strings.ToUpper(parts[0])
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	parser.UserAgent = userAgent

	return &News{
		baseURL: cfg.BaseURL,
		params: url.Values{
			"hl":   {lang},
			"gl":   {country},
			"ceid": {country + ":" + lang},
		},
		parser:  parser,
		timeout: cfg.Timeout,
		log:     logger.Named("search"),
	}
}

func (n *News) Name() string { return "news" }

func (n *News) Search(ctx context.Context, query string, max int) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	q := url.Values{}
	for k, v := range n.params {
		q[k] = v
	}
	q.Set("q", query)

	feed, err := n.parser.ParseURLWithContext(n.baseURL+"?"+q.Encode(), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, Item{
			Title:   it.Title,
			Href:    it.Link,
			Snippet: FirstNonEmpty(htmlText(it.Description), htmlText(it.Content)),
		})
	}
	items = Normalize(items, max)

	logger.FromContext(ctx, n.log).Debug("news search completed",
		zap.String("query", query), zap.Int("result_count", len(items)))
	return items, nil
}

// htmlText flattens the HTML fragments feeds put in descriptions.
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return doc.Text()
}
