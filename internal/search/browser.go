package search

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"deep-search-wiser/internal/logger"
)

const (
	duckDuckGoURL         = "https://duckduckgo.com/"
	browserResultSelector = `article[data-testid="result"]`
)

// BrowserConfig configures the headless-browser backend.
type BrowserConfig struct {
	Region   string
	Headless bool
	Timeout  time.Duration
}

// Browser renders the regular DuckDuckGo results page in Chromium. It is the
// fallback when the HTML endpoint starts serving challenges.
type Browser struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
	log     *zap.Logger
}

// NewBrowser creates a browser backend. Chromium is launched on first use.
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Browser{cfg: cfg, log: logger.Named("search")}
}

func (b *Browser) Name() string { return "browser" }

func (b *Browser) ensureBrowser() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL, err := launcher.New().Headless(b.cfg.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	b.browser = browser
	return browser, nil
}

func (b *Browser) Search(ctx context.Context, query string, max int) ([]Item, error) {
	browser, err := b.ensureBrowser()
	if err != nil {
		return nil, err
	}

	q := url.Values{"q": {query}, "ia": {"web"}}
	if b.cfg.Region != "" {
		q.Set("kl", b.cfg.Region)
	}

	page, err := browser.Context(ctx).Timeout(b.cfg.Timeout).Page(proto.TargetCreateTarget{URL: duckDuckGoURL + "?" + q.Encode()})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page load timeout: %w", err)
	}
	// Element retries until the first result renders or the timeout fires.
	if _, err := page.Element(browserResultSelector); err != nil {
		return nil, fmt.Errorf("no results rendered: %w", err)
	}
	articles, err := page.Elements(browserResultSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var items []Item
	for _, a := range articles {
		items = append(items, Item{
			Title:   elementText(a, "h2"),
			Href:    elementAttr(a, `a[data-testid="result-title-a"]`, "href"),
			Snippet: elementText(a, `[data-result="snippet"]`),
		})
		if len(items) >= max*2 {
			break
		}
	}
	items = Normalize(items, max)

	logger.FromContext(ctx, b.log).Debug("browser search completed",
		zap.String("query", query), zap.Int("result_count", len(items)))
	return items, nil
}

// elementText returns the text of the first child matching selector, without
// waiting for it to appear.
func elementText(el *rod.Element, selector string) string {
	if has, child, err := el.Has(selector); err == nil && has {
		if text, err := child.Text(); err == nil {
			return text
		}
	}
	return ""
}

func elementAttr(el *rod.Element, selector, name string) string {
	if has, child, err := el.Has(selector); err == nil && has {
		if v, err := child.Attribute(name); err == nil && v != nil {
			return *v
		}
	}
	return ""
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
