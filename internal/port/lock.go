package port

import (
	"context"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

// LockCoordinator grants one exclusive holder per stock key.
// The returned release func must be called exactly once.
type LockCoordinator interface {
	Acquire(ctx context.Context, key domain.StockKey) (release func(), err error)
}
