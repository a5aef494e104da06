// internal/store/guard.go
package store

import (
	"context"
	"sync"

	"github.com/wabroadcast/backend/internal/model"
)

// Guard routes every read-modify-write of the snapshot through one mutex.
// The admission API and the dispatcher mutate the same snapshot from
// different goroutines; without a shared serialization point one writer's
// load-then-save can overwrite the other's just-persisted changes with stale
// copies. All writers must go through the same Guard instance.
type Guard struct {
	mu sync.Mutex
	st Store
}

func NewGuard(st Store) *Guard {
	return &Guard{st: st}
}

// Load returns the current snapshot. Reads do not take the write lock.
func (g *Guard) Load(ctx context.Context) ([]*model.Campaign, error) {
	return g.st.Load(ctx)
}

// Update re-loads the latest snapshot, applies the mutation and saves the
// result, all under the lock. Returning false from apply discards the
// mutation without writing anything.
func (g *Guard) Update(ctx context.Context, apply func(campaigns []*model.Campaign) ([]*model.Campaign, bool)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	campaigns, err := g.st.Load(ctx)
	if err != nil {
		return err
	}
	next, save := apply(campaigns)
	if !save {
		return nil
	}
	return g.st.Save(ctx, next)
}
