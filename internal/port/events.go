package port

import (
	"context"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.StockEvent) error
}
