package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rl1809/inventory-reservation/internal/adapter/lock"
	"github.com/rl1809/inventory-reservation/internal/adapter/storage"
	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

// Mock PaymentConfirmer
type mockPayments struct {
	approve atomic.Bool
	calls   atomic.Int32
}

func newMockPayments(approve bool) *mockPayments {
	p := &mockPayments{}
	p.approve.Store(approve)
	return p
}

func (m *mockPayments) Confirm(ctx context.Context, transactionID string) bool {
	m.calls.Add(1)
	return m.approve.Load()
}

// countingLocks records how often a lock was requested.
type countingLocks struct {
	*lock.KeyedMutex
	acquires atomic.Int32
	err      error
}

func (c *countingLocks) Acquire(ctx context.Context, key domain.StockKey) (func(), error) {
	c.acquires.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.KeyedMutex.Acquire(ctx, key)
}

// spyStore counts reads so tests can prove a path never touched stock.
type spyStore struct {
	*storage.MemoryStockStore
	gets    atomic.Int32
	failGet error
}

func (s *spyStore) Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error) {
	s.gets.Add(1)
	if s.failGet != nil {
		return nil, s.failGet
	}
	return s.MemoryStockStore.Get(ctx, key)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.StockEvent
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, ev domain.StockEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) all() []domain.StockEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StockEvent(nil), r.events...)
}

type fixture struct {
	store    *spyStore
	ledger   *Ledger
	locks    *countingLocks
	payments *mockPayments
}

func newFixture(t *testing.T, seed ...domain.StockRecord) *fixture {
	t.Helper()
	f := &fixture{
		store:    &spyStore{MemoryStockStore: storage.NewMemoryStockStore()},
		locks:    &countingLocks{KeyedMutex: lock.NewKeyedMutex(nil)},
		payments: newMockPayments(true),
	}
	f.ledger = NewLedger(f.store)
	if _, err := f.ledger.Seed(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

func (f *fixture) reservations(opts ...Option) *ReservationService {
	return NewReservationService(f.ledger, f.locks, f.payments, opts...)
}

func (f *fixture) adjustments(opts ...Option) *AdjustmentService {
	return NewAdjustmentService(f.ledger, f.locks, opts...)
}

func (f *fixture) quantity(t *testing.T, productID, locationID string) int {
	t.Helper()
	return f.record(t, productID, locationID).Quantity
}

func (f *fixture) record(t *testing.T, productID, locationID string) domain.StockRecord {
	t.Helper()
	rec, err := f.store.MemoryStockStore.Get(context.Background(), domain.NewStockKey(productID, locationID))
	if err != nil {
		t.Fatalf("read %s/%s: %v", productID, locationID, err)
	}
	return *rec
}

// assertUntouched fails unless every stored field of the record is unchanged.
func (f *fixture) assertUntouched(t *testing.T, before domain.StockRecord) {
	t.Helper()
	after := f.record(t, before.ProductID, before.LocationID)
	if after.Quantity != before.Quantity || after.Version != before.Version || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("record changed: before %+v, after %+v", before, after)
	}
}

func stock(productID, locationID string, qty int) domain.StockRecord {
	return domain.StockRecord{ProductID: productID, LocationID: locationID, Quantity: qty}
}

var errStoreDown = errors.New("store unavailable")
