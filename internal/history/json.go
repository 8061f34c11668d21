package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// JSONStore keeps the history as one JSON array, rewritten in full on every
// change (last writer wins across processes).
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore creates a store backed by path. The file is created on first
// write.
func NewJSONStore(path string) *JSONStore {
	if path == "" {
		path = "chat_history.json"
	}
	return &JSONStore{path: path}
}

func (s *JSONStore) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	return s.save(append(records, r))
}

func (s *JSONStore) Get(ctx context.Context, index int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	if err := checkIndex(index, len(records)); err != nil {
		return Record{}, err
	}
	return records[index], nil
}

func (s *JSONStore) Delete(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	if err := checkIndex(index, len(records)); err != nil {
		return err
	}
	return s.save(append(records[:index], records[index+1:]...))
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read history")
	}
	var records []Record
	if len(data) == 0 {
		return []Record{}, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "decode history %s", s.path)
	}
	return records, nil
}

func (s *JSONStore) save(records []Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrap(err, "create history dir")
		}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(err, "write history")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replace history")
}
