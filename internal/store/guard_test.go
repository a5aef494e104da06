package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/wabroadcast/backend/internal/model"
	"github.com/wabroadcast/backend/internal/store"
)

// Concurrent read-modify-write cycles through the same Guard must not lose
// updates. Without the lock most of these appends would overwrite each other.
func TestGuardSerializesConcurrentUpdates(t *testing.T) {
	snap := store.NewGuard(store.NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := snap.Update(ctx, func(campaigns []*model.Campaign) ([]*model.Campaign, bool) {
				c := &model.Campaign{ID: fmt.Sprintf("c-%d", i), Status: model.StatusInProgress}
				return append(campaigns, c), true
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	campaigns, err := snap.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(campaigns) != 20 {
		t.Errorf("expected 20 campaigns after concurrent updates, got %d", len(campaigns))
	}
}

func TestGuardDiscardsWhenApplyDeclines(t *testing.T) {
	snap := store.NewGuard(store.NewMemoryStore())
	ctx := context.Background()

	err := snap.Update(ctx, func(campaigns []*model.Campaign) ([]*model.Campaign, bool) {
		return append(campaigns, &model.Campaign{ID: "dropped"}), false
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	campaigns, err := snap.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(campaigns) != 0 {
		t.Errorf("declined update was persisted: %d campaigns", len(campaigns))
	}
}
