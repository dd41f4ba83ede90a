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
	"github.com/rl1809/inventory-reservation/internal/observability"
	"github.com/rl1809/inventory-reservation/internal/port"
)

// ReservationService decrements stock only after payment has been confirmed.
type ReservationService struct {
	ledger   *Ledger
	locks    port.LockCoordinator
	payments port.PaymentConfirmer
	opts     options
}

func NewReservationService(ledger *Ledger, locks port.LockCoordinator, payments port.PaymentConfirmer, opts ...Option) *ReservationService {
	return &ReservationService{
		ledger:   ledger,
		locks:    locks,
		payments: payments,
		opts:     newOptions(opts),
	}
}

// Reserve confirms payment for req.TransactionID and then takes req.Quantity
// from the key's stock. A rejected reservation leaves the ledger untouched;
// when payment is not confirmed no lock is taken and no stock is read.
func (s *ReservationService) Reserve(ctx context.Context, req domain.ReservationRequest) (rec *domain.StockRecord, err error) {
	ctx, span := tracer.Start(ctx, spanPrefix+"Reserve", trace.WithAttributes(
		attribute.String("transaction.id", req.TransactionID),
		attribute.String("product.id", req.ProductID),
		attribute.String("location.id", req.LocationID),
		attribute.Int("reservation.quantity", req.Quantity),
	))
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("transaction_id", req.TransactionID),
			zap.String("product_id", req.ProductID),
			zap.String("location_id", req.LocationID),
			zap.Int("quantity", req.Quantity),
		}
		if rec != nil {
			fields = append(fields, zap.Int("stock_level", rec.Quantity))
		}
		finish(ctx, s.opts, span, opReserve, start, err, fields...)
	}()

	if err = req.Validate(); err != nil {
		return nil, err
	}

	// The claim is released on every exit that did not commit, panics included.
	committed := false
	if idem := s.opts.idempotency; idem != nil {
		claimed, claimErr := idem.Claim(ctx, req.TransactionID)
		if claimErr != nil {
			return nil, fmt.Errorf("claim transaction: %w", claimErr)
		}
		if !claimed {
			return nil, domain.ErrDuplicateTransaction
		}
		defer func() {
			if committed {
				return
			}
			if relErr := idem.Release(context.WithoutCancel(ctx), req.TransactionID); relErr != nil {
				observability.LoggerFrom(ctx, s.opts.log).Error("transaction_release_failed",
					zap.String("transaction_id", req.TransactionID),
					zap.Error(relErr),
				)
			}
		}()
	}

	if !s.payments.Confirm(ctx, req.TransactionID) {
		return nil, domain.ErrPaymentUnavailable
	}

	rec, err = s.take(ctx, req)
	if err != nil {
		return nil, err
	}
	committed = true

	publish(ctx, s.opts, domain.NewStockEvent(domain.StockEventReserved, req.TransactionID, rec, -req.Quantity))
	return rec, nil
}

// take runs the load, check and persist sequence under the key's lock.
func (s *ReservationService) take(ctx context.Context, req domain.ReservationRequest) (*domain.StockRecord, error) {
	key := req.Key()
	release, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	defer release()

	cur, err := s.ledger.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if cur.Quantity < req.Quantity {
		return nil, &domain.InsufficientStockError{Key: key, Available: cur.Quantity, Requested: req.Quantity}
	}

	rec, err := s.ledger.LockedApply(ctx, key, func(current int) int { return current - req.Quantity }, false)
	var neg *domain.NegativeResultError
	if errors.As(err, &neg) {
		return nil, &domain.InsufficientStockError{Key: key, Available: neg.Current, Requested: req.Quantity}
	}
	return rec, err
}
