// internal/store/store.go
package store

import (
	"context"
	"fmt"

	"github.com/wabroadcast/backend/internal/model"
)

// Store holds the full campaign list as one durable snapshot. Load returns the
// current snapshot (an empty list on first run, never an error for "no data");
// Save atomically replaces it. Implementations must be safe for concurrent use
// by the admission API and the dispatcher.
type Store interface {
	Load(ctx context.Context) ([]*model.Campaign, error)
	Save(ctx context.Context, campaigns []*model.Campaign) error
}

// UnavailableError wraps an I/O failure of the backing medium. The dispatcher
// treats it as retry-next-tick, never as fatal.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
