// Package filter asks the LLM to flag negative news among search results and
// validates its answer before anything downstream sees it.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/llm"
	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/prompt"
	"deep-search-wiser/internal/search"
)

// Report statuses.
const (
	StatusNegativeFound     = "negative_found"
	StatusNoNegativeContent = "no_negative_content"
)

// Flagged is a search item the model marked as negative.
type Flagged struct {
	Title         string   `json:"title" jsonschema:"required"`
	Href          string   `json:"href"`
	Snippet       string   `json:"snippet"`
	KeywordsFound []string `json:"keywords_found"`
	Reason        string   `json:"reason" jsonschema:"required"`
}

// Report is the filter's output document.
type Report struct {
	Status string    `json:"status"`
	Query  string    `json:"query,omitempty"`
	Items  []Flagged `json:"items"`
}

// Negative reports whether any item was flagged.
func (r Report) Negative() bool {
	return r.Status == StatusNegativeFound && len(r.Items) > 0
}

func (r Report) String() string {
	if r.Items == nil {
		r.Items = []Flagged{}
	}
	return encode(r)
}

// ItemsJSON encodes only the flagged items.
func (r Report) ItemsJSON() string {
	if r.Items == nil {
		return "[]"
	}
	return encode(r.Items)
}

func encode(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimRight(b.String(), "\n")
}

// ParseReport decodes a Report produced by Report.String. ok is false when
// text is not a report.
func ParseReport(text string) (Report, bool) {
	var r Report
	if err := json.Unmarshal([]byte(strings.TrimSpace(unfence(text))), &r); err != nil {
		return Report{}, false
	}
	if r.Status != StatusNegativeFound && r.Status != StatusNoNegativeContent {
		return Report{}, false
	}
	return r, true
}

// Filter flags negative items in search results.
type Filter struct {
	provider    llm.Provider
	prompts     *prompt.Store
	matcher     *Matcher
	temperature float64
	maxTokens   int
	schema      *gojsonschema.Schema
	log         *zap.Logger
}

// New creates a filter. Keywords default to config.DefaultKeywords.
func New(provider llm.Provider, prompts *prompt.Store, cfg config.FilterConfig) (*Filter, error) {
	schema, err := outputSchema()
	if err != nil {
		return nil, err
	}
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = config.DefaultKeywords
	}
	return &Filter{
		provider:    provider,
		prompts:     prompts,
		matcher:     NewMatcher(keywords),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		schema:      schema,
		log:         logger.Named("filter"),
	}, nil
}

// outputSchema is the JSON Schema of the model's answer: an array of Flagged.
func outputSchema() (*gojsonschema.Schema, error) {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		Anonymous:                  true,
	}
	item := r.Reflect(&Flagged{})
	item.Version = ""

	doc, err := json.Marshal(map[string]any{"type": "array", "items": item})
	if err != nil {
		return nil, fmt.Errorf("encode filter schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile filter schema: %w", err)
	}
	return schema, nil
}

// Filter runs the negative-content check over raw search output.
func (f *Filter) Filter(ctx context.Context, raw string) (Report, error) {
	log := logger.FromContext(ctx, f.log)

	query, items := ParseInput(raw)
	if len(items) == 0 {
		return Report{Status: StatusNoNegativeContent, Query: query, Items: []Flagged{}}, nil
	}

	text, err := f.prompts.Render(ctx, prompt.NegativeFilter, map[string]any{
		"search_results_json": search.Results{Query: query, Results: items}.String(),
		"keywords":            f.matcher.Keywords(),
	})
	if err != nil {
		return Report{}, err
	}

	resp, err := f.provider.Chat(ctx, llm.Prompt(text, f.temperature, f.maxTokens))
	if err != nil {
		return Report{}, fmt.Errorf("llm call failed: %w", err)
	}

	flagged, err := f.decode(resp.Content)
	if err != nil {
		return Report{}, err
	}

	kept := make([]Flagged, 0, len(flagged))
	for _, it := range flagged {
		found := f.matcher.Find(it.Title, it.Snippet, it.Href)
		if len(found) == 0 {
			log.Debug("dropping flagged item without keywords", zap.String("title", it.Title))
			continue
		}
		it.KeywordsFound = found
		it.Reason = strings.TrimSpace(it.Reason)
		kept = append(kept, it)
	}

	report := Report{Status: StatusNoNegativeContent, Query: query, Items: kept}
	if len(kept) > 0 {
		report.Status = StatusNegativeFound
	}
	log.Info("negative filter completed",
		zap.Int("input_items", len(items)),
		zap.Int("flagged", len(flagged)),
		zap.Int("kept", len(kept)))
	return report, nil
}

func (f *Filter) decode(content string) ([]Flagged, error) {
	payload := extractArray(content)
	if payload == "" {
		return nil, fmt.Errorf("model did not return a JSON array: %q", abbreviate(content, 200))
	}

	res, err := f.schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON from model: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("model output does not match schema: %s", strings.Join(msgs, "; "))
	}

	var flagged []Flagged
	if err := json.Unmarshal([]byte(payload), &flagged); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	return flagged, nil
}

// ParseInput accepts the search tool's JSON document, a bare array of items,
// or free text (treated as a single item whose snippet is the text).
func ParseInput(raw string) (query string, items []search.Item) {
	text := strings.TrimSpace(unfence(raw))
	text = strings.Trim(text, "'\"`")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	var doc search.Results
	if err := json.Unmarshal([]byte(text), &doc); err == nil && (doc.Query != "" || doc.Results != nil) {
		return doc.Query, search.Normalize(doc.Results, len(doc.Results))
	}
	var arr []search.Item
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return "", search.Normalize(arr, len(arr))
	}
	return "", []search.Item{{Snippet: text}}
}

// unfence strips a surrounding Markdown code fence.
func unfence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // language tag
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// extractArray returns the outermost JSON array in content, or "".
func extractArray(content string) string {
	s := unfence(content)
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
