// internal/store/file.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/wabroadcast/backend/internal/model"
)

// FileStore keeps the campaign list as one JSON document, rewritten whole on
// every Save. The rewrite goes through a temp file plus rename so a crash
// mid-write never leaves a truncated snapshot behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// first run
			return []*model.Campaign{}, nil
		}
		return nil, &UnavailableError{Op: "load", Err: err}
	}

	campaigns := []*model.Campaign{}
	if err := json.Unmarshal(data, &campaigns); err != nil {
		return nil, &UnavailableError{Op: "load", Err: err}
	}
	return campaigns, nil
}

func (s *FileStore) Save(ctx context.Context, campaigns []*model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(campaigns, "", "  ")
	if err != nil {
		return &UnavailableError{Op: "save", Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".campaigns-*.json")
	if err != nil {
		return &UnavailableError{Op: "save", Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &UnavailableError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &UnavailableError{Op: "save", Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return &UnavailableError{Op: "save", Err: err}
	}
	return nil
}

var _ Store = (*FileStore)(nil)
