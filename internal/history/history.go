// Package history persists chat records ({prompt, response}) in insertion
// order. Records have no identity; they are addressed by index.
package history

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"deep-search-wiser/internal/config"
)

// ErrIndexOutOfRange is returned for an index outside [0, len).
var ErrIndexOutOfRange = errors.New("history index out of range")

// Record is one answered prompt. Chat is empty for the console and HTTP
// shells, which share one history like the original web UI.
type Record struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Chat     string `json:"chat,omitempty"`
}

// Store is a chat history backend.
type Store interface {
	List(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, r Record) error
	Get(ctx context.Context, index int) (Record, error)
	Delete(ctx context.Context, index int) error
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Driver {
	case "", "json":
		return NewJSONStore(cfg.Path), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "bolt", "bbolt":
		return NewBoltStore(cfg.Path)
	default:
		return nil, errors.Errorf("unknown history driver: %q", cfg.Driver)
	}
}

// Title is the sidebar label of a record: the first 20 characters of the
// prompt followed by "...".
func Title(r Record) string {
	runes := []rune(r.Prompt)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return string(runes) + "..."
}

// Entry is a record with its position in the store.
type Entry struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Record
}

// Entries lists records with their indexes, keeping those whose prompt
// contains query (case-insensitive). An empty query keeps everything.
func Entries(records []Record, query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Entry, 0, len(records))
	for i, r := range records {
		if q != "" && !strings.Contains(strings.ToLower(r.Prompt), q) {
			continue
		}
		out = append(out, Entry{Index: i, Title: Title(r), Record: r})
	}
	return out
}

// Recent returns up to n of the latest records of chat, oldest first.
func Recent(ctx context.Context, s Store, chat string, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if all[i].Chat == chat {
			out = append(out, all[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, %d records", index, n)
	}
	return nil
}
