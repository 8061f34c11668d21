// Package prompt loads the prompt templates used by the agent and its tools.
// Templates are embedded in the binary; when a hub URL is configured they are
// fetched by name from it first.
package prompt

import (
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"
	"unicode"

	"github.com/Masterminds/sprig/v3"
	"go.uber.org/zap"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/logger"
)

// Template names.
const (
	React               = "hwchase17/react"
	NegativeFilter      = "negative_filter"
	Summarize           = "summarize"
	ConversationSummary = "conversation_summary"
)

//go:embed templates/*.md.tmpl
var embedded embed.FS

// embeddedFile maps a template name to its file under templates/.
func embeddedFile(name string) string {
	if name == React {
		name = "react"
	}
	return "templates/" + name + ".md.tmpl"
}

// Store resolves templates by name and caches the parsed result.
type Store struct {
	hubURL string
	client *http.Client
	log    *zap.Logger

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewStore creates a template store.
func NewStore(cfg config.PromptsConfig) *Store {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		hubURL: strings.TrimRight(cfg.HubURL, "/"),
		client: &http.Client{Timeout: timeout},
		log:    logger.Named("prompt"),
		cache:  make(map[string]*template.Template),
	}
}

// Get returns the parsed template for name.
func (s *Store) Get(ctx context.Context, name string) (*template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.cache[name]; ok {
		return t, nil
	}

	var t *template.Template
	if s.hubURL != "" {
		text, err := s.fetch(ctx, name)
		if err == nil {
			t, err = parse(name, text)
		}
		if err != nil {
			logger.FromContext(ctx, s.log).Warn("prompt hub unavailable, using embedded template",
				zap.String("name", name), zap.Error(err))
		}
	}
	if t == nil {
		data, err := embedded.ReadFile(embeddedFile(name))
		if err != nil {
			return nil, fmt.Errorf("prompt %q not found", name)
		}
		if t, err = parse(name, string(data)); err != nil {
			return nil, err
		}
	}

	s.cache[name] = t
	return t, nil
}

// Render executes the named template with data.
func (s *Store) Render(ctx context.Context, name string, data map[string]any) (string, error) {
	t, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return b.String(), nil
}

func (s *Store) fetch(ctx context.Context, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.hubURL+"/"+name, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hub returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func parse(name, text string) (*template.Template, error) {
	if !isGoTemplate(text) {
		text = fromFString(text)
	}
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %q: %w", name, err)
	}
	return t, nil
}

func isGoTemplate(text string) bool {
	return strings.Contains(text, "{{ .") || strings.Contains(text, "{{.") || strings.Contains(text, "{{-")
}

// fromFString converts a Python f-string style template ("{input}", with
// "{{" and "}}" as literal braces) into text/template syntax.
func fromFString(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			b.WriteString(`{{"{"}}`)
			i++
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			b.WriteString(`}`)
			i++
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end > 0 && isIdent(text[i+1:i+1+end]) {
				b.WriteString("{{ ." + text[i+1:i+1+end] + " }}")
				i += end + 1
				continue
			}
			b.WriteString(`{{"{"}}`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdent(s string) bool {
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return s != ""
}
