package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

func adjustment(productID string, delta int) domain.AdjustmentRequest {
	return domain.AdjustmentRequest{ProductID: productID, LocationID: "S001", Delta: delta}
}

func TestAdjust_CreatesAbsentKeyOnReceipt(t *testing.T) {
	f := newFixture(t, stock("P001", "S001", 10))
	svc := f.adjustments()

	rec, err := svc.Adjust(context.Background(), adjustment("P003", 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Quantity != 20 {
		t.Errorf("expected quantity 20, got %d", rec.Quantity)
	}
	if got := f.quantity(t, "P003", "S001"); got != 20 {
		t.Errorf("expected stored 20, got %d", got)
	}
}

func TestAdjust_WouldGoNegative(t *testing.T) {
	f := newFixture(t, stock("P001", "S001", 5))
	svc := f.adjustments()

	_, err := svc.Adjust(context.Background(), adjustment("P001", -10))
	if !errors.Is(err, domain.ErrWouldGoNegative) {
		t.Fatalf("expected ErrWouldGoNegative, got %v", err)
	}
	var neg *domain.NegativeResultError
	if !errors.As(err, &neg) || neg.Current != 5 || neg.Candidate != -5 {
		t.Errorf("expected quantities in error, got %v", err)
	}
	if got := f.quantity(t, "P001", "S001"); got != 5 {
		t.Errorf("expected ledger unchanged at 5, got %d", got)
	}
	if f.locks.Len() != 0 {
		t.Errorf("lock leaked after rejection")
	}
}

func TestAdjust_AbsentKeyNonPositiveDelta(t *testing.T) {
	f := newFixture(t, stock("P001", "S001", 5))
	svc := f.adjustments()

	_, err := svc.Adjust(context.Background(), adjustment("P003", -3))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("negative delta on absent key: expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, domain.ErrWouldGoNegative) {
		t.Errorf("absent key must not report a negative result, got %v", err)
	}

	_, err = svc.Adjust(context.Background(), adjustment("P003", 0))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("zero delta on absent key: expected ErrNotFound, got %v", err)
	}

	if _, err := f.store.MemoryStockStore.Get(context.Background(), domain.NewStockKey("P003", "S001")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("no record may be created, got %v", err)
	}
}

func TestAdjust_ExistingKey(t *testing.T) {
	f := newFixture(t, stock("P001", "S001", 5))
	svc := f.adjustments()
	ctx := context.Background()

	rec, err := svc.Adjust(ctx, adjustment("P001", -5))
	if err != nil || rec.Quantity != 0 {
		t.Fatalf("expected quantity 0, got %+v (%v)", rec, err)
	}

	rec, err = svc.Adjust(ctx, adjustment("P001", 0))
	if err != nil || rec.Quantity != 0 {
		t.Errorf("zero delta on existing key should succeed, got %+v (%v)", rec, err)
	}
}

func TestAdjust_Validation(t *testing.T) {
	f := newFixture(t)
	svc := f.adjustments()

	_, err := svc.Adjust(context.Background(), domain.AdjustmentRequest{ProductID: "P001", Delta: 1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if f.locks.acquires.Load() != 0 {
		t.Errorf("invalid request must not take a lock")
	}
}

func TestAdjust_PublishesEvent(t *testing.T) {
	f := newFixture(t, stock("P001", "S001", 5))
	pub := &recordingPublisher{}
	svc := f.adjustments(WithEvents(pub))

	svc.Adjust(context.Background(), adjustment("P001", 4))

	events := pub.all()
	if len(events) != 1 || events[0].Type != domain.StockEventAdjusted || events[0].Delta != 4 || events[0].Quantity != 9 {
		t.Errorf("unexpected events %+v", events)
	}
}

// Reservations and adjustments racing on one key must never leave a negative
// quantity and must account for every unit.
func TestReserveAndAdjust_ConcurrentInvariant(t *testing.T) {
	f := newFixture(t, stock("P001", "S001", 10))
	reservations := f.reservations()
	adjustments := f.adjustments()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		received int
	)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			if _, err := reservations.Reserve(context.Background(), reservation(fmt.Sprintf("tx-%d", id), 2)); err == nil {
				mu.Lock()
				reserved += 2
				mu.Unlock()
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := adjustments.Adjust(context.Background(), adjustment("P001", 1)); err == nil {
				mu.Lock()
				received++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got := f.quantity(t, "P001", "S001")
	if got < 0 {
		t.Fatalf("quantity went negative: %d", got)
	}
	if want := 10 + received - reserved; got != want {
		t.Errorf("expected %d, got %d (received %d, reserved %d)", want, got, received, reserved)
	}
}
