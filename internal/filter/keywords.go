package filter

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s with Turkish rules and strips diacritics, so "SORUŞTURMA",
// "soruşturma" and "sorusturma" compare equal. Dotless ı folds to i.
func fold(s string) string {
	lower := cases.Lower(language.Turkish).String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, lower)
	if err != nil {
		stripped = lower
	}
	stripped = strings.ReplaceAll(stripped, "ı", "i")
	return strings.Join(strings.Fields(stripped), " ")
}

// Matcher finds configured keywords in text.
type Matcher struct {
	keywords []string
	folded   []string
}

// NewMatcher creates a matcher for keywords. Blank and duplicate entries are
// ignored.
func NewMatcher(keywords []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool)
	for _, k := range keywords {
		f := fold(k)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		m.keywords = append(m.keywords, strings.TrimSpace(k))
		m.folded = append(m.folded, f)
	}
	return m
}

// Keywords returns the configured keywords in order.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// Find returns the keywords contained in any of texts, in configuration order.
// Inflected forms match too ("davası" contains "dava").
func (m *Matcher) Find(texts ...string) []string {
	haystack := fold(strings.Join(texts, " "))
	var found []string
	for i, f := range m.folded {
		if strings.Contains(haystack, f) {
			found = append(found, m.keywords[i])
		}
	}
	return found
}
