package port

import (
	"context"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

type StockStore interface {
	// Get returns domain.ErrNotFound when no record exists for key
	Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error)

	// Insert persists a new record, failing if one already exists for its key
	Insert(ctx context.Context, record domain.StockRecord) error

	// Update replaces the record stored at version record.Version-1. It fails
	// with domain.ErrNotFound if absent and ErrOptimisticLock-style errors if
	// the stored version moved on.
	Update(ctx context.Context, record domain.StockRecord) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
}
