package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

func TestGetStock(t *testing.T) {
	f := newFixture(t, stock("P001", "S001", 10))
	svc := NewQueryService(f.ledger)
	ctx := context.Background()

	rec, err := svc.GetStock(ctx, "P001", "S001")
	if err != nil || rec.Quantity != 10 {
		t.Fatalf("expected quantity 10, got %+v (%v)", rec, err)
	}

	if _, err := svc.GetStock(ctx, "P001", "S404"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetStock(ctx, "", "S001"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if f.locks.acquires.Load() != 0 {
		t.Errorf("queries must not lock")
	}
}
