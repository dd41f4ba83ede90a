package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/port"
)

// AdjustmentService applies receipts and corrections. A positive delta on an
// unknown key creates it.
type AdjustmentService struct {
	ledger *Ledger
	locks  port.LockCoordinator
	opts   options
}

func NewAdjustmentService(ledger *Ledger, locks port.LockCoordinator, opts ...Option) *AdjustmentService {
	return &AdjustmentService{ledger: ledger, locks: locks, opts: newOptions(opts)}
}

func (s *AdjustmentService) Adjust(ctx context.Context, req domain.AdjustmentRequest) (rec *domain.StockRecord, err error) {
	ctx, span := tracer.Start(ctx, spanPrefix+"Adjust", trace.WithAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.String("location.id", req.LocationID),
		attribute.Int("adjustment.delta", req.Delta),
	))
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("product_id", req.ProductID),
			zap.String("location_id", req.LocationID),
			zap.Int("delta", req.Delta),
		}
		if rec != nil {
			fields = append(fields, zap.Int("stock_level", rec.Quantity))
		}
		finish(ctx, s.opts, span, opAdjust, start, err, fields...)
	}()

	if err = req.Validate(); err != nil {
		return nil, err
	}

	rec, err = s.apply(ctx, req)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.opts, domain.NewStockEvent(domain.StockEventAdjusted, "", rec, req.Delta))
	return rec, nil
}

func (s *AdjustmentService) apply(ctx context.Context, req domain.AdjustmentRequest) (*domain.StockRecord, error) {
	key := req.Key()
	release, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	defer release()

	current, exists := 0, true
	cur, err := s.ledger.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		exists = false
	case err != nil:
		return nil, err
	default:
		current = cur.Quantity
	}

	if !exists && req.Delta <= 0 {
		return nil, domain.ErrNotFound
	}
	if current+req.Delta < 0 {
		return nil, wouldGoNegative(&domain.NegativeResultError{Key: key, Current: current, Candidate: current + req.Delta})
	}

	rec, err := s.ledger.LockedApply(ctx, key, func(q int) int { return q + req.Delta }, req.Delta > 0)
	var neg *domain.NegativeResultError
	if errors.As(err, &neg) {
		return nil, wouldGoNegative(neg)
	}
	return rec, err
}

func wouldGoNegative(cause *domain.NegativeResultError) error {
	return fmt.Errorf("%w: %w", domain.ErrWouldGoNegative, cause)
}
