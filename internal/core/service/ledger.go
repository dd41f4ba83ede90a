package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/port"
)

// Ledger owns the key to quantity mapping and guarantees no quantity it
// persists is negative. It does not lock; LockedApply callers must already
// hold the key's lock.
type Ledger struct {
	store port.StockStore
	now   func() time.Time
}

func NewLedger(store port.StockStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Get reads without synchronization and may observe a value an in-flight
// locked update is about to replace.
func (l *Ledger) Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error) {
	rec, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load stock %s: %w", key, err)
	}
	return rec, nil
}

// LockedApply loads the record for key, applies mutation to its quantity and
// persists the result if it is not negative. An absent key is treated as
// quantity 0 when createIfAbsent is set and reported as domain.ErrNotFound
// otherwise.
func (l *Ledger) LockedApply(ctx context.Context, key domain.StockKey, mutation func(current int) int, createIfAbsent bool) (*domain.StockRecord, error) {
	cur, err := l.Get(ctx, key)
	exists := err == nil
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if !createIfAbsent {
			return nil, domain.ErrNotFound
		}
		cur = &domain.StockRecord{ProductID: key.ProductID, LocationID: key.LocationID}
	case err != nil:
		return nil, err
	}

	candidate := mutation(cur.Quantity)
	if candidate < 0 {
		return nil, &domain.NegativeResultError{Key: key, Current: cur.Quantity, Candidate: candidate}
	}

	next := domain.StockRecord{
		ProductID:  key.ProductID,
		LocationID: key.LocationID,
		Quantity:   candidate,
		Version:    cur.Version + 1,
		UpdatedAt:  l.now().UTC(),
	}

	if exists {
		err = l.store.Update(ctx, next)
	} else {
		err = l.store.Insert(ctx, next)
	}
	if err != nil {
		return nil, fmt.Errorf("persist stock %s: %w", key, err)
	}
	return &next, nil
}

// Seed inserts records only when the store holds none, so restarts against a
// durable store keep their data. It returns how many records were inserted.
func (l *Ledger) Seed(ctx context.Context, records []domain.StockRecord) (int, error) {
	n, err := l.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count stock: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	inserted := 0
	for _, rec := range records {
		if err := rec.Key().Validate(); err != nil {
			return inserted, err
		}
		if rec.Quantity < 0 {
			return inserted, &domain.NegativeResultError{Key: rec.Key(), Candidate: rec.Quantity}
		}

		rec.Version = 1
		rec.UpdatedAt = l.now().UTC()
		if err := l.store.Insert(ctx, rec); err != nil {
			return inserted, fmt.Errorf("seed stock %s: %w", rec.Key(), err)
		}
		inserted++
	}
	return inserted, nil
}
