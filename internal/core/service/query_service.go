package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

// QueryService serves unlocked stock reads.
type QueryService struct {
	ledger *Ledger
	opts   options
}

func NewQueryService(ledger *Ledger, opts ...Option) *QueryService {
	return &QueryService{ledger: ledger, opts: newOptions(opts)}
}

func (s *QueryService) GetStock(ctx context.Context, productID, locationID string) (rec *domain.StockRecord, err error) {
	ctx, span := tracer.Start(ctx, spanPrefix+"GetStock", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.String("location.id", locationID),
	))
	start := time.Now()
	defer func() {
		finish(ctx, s.opts, span, opQuery, start, err,
			zap.String("product_id", productID),
			zap.String("location_id", locationID),
		)
	}()

	key := domain.NewStockKey(productID, locationID)
	if err = key.Validate(); err != nil {
		return nil, err
	}
	return s.ledger.Get(ctx, key)
}
