// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/wabroadcast/backend/internal/model"
)

// MemoryStore is a non-durable Store used in tests and local development.
// Snapshots are deep-copied on the way in and out so callers never share
// mutable state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns []*model.Campaign
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{campaigns: []*model.Campaign{}}
}

func (s *MemoryStore) Load(ctx context.Context) ([]*model.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Campaign, len(s.campaigns))
	for i, c := range s.campaigns {
		out[i] = c.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, campaigns []*model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*model.Campaign, len(campaigns))
	for i, c := range campaigns {
		snapshot[i] = c.Clone()
	}
	s.campaigns = snapshot
	return nil
}

var _ Store = (*MemoryStore)(nil)
