package domain

import (
	"errors"
	"testing"
)

func TestReservationRequest_Validate(t *testing.T) {
	cases := []struct {
		name  string
		req   ReservationRequest
		field string
	}{
		{"valid", ReservationRequest{TransactionID: "tx-1", ProductID: "P001", LocationID: "S001", Quantity: 1}, ""},
		{"missing transaction", ReservationRequest{ProductID: "P001", LocationID: "S001", Quantity: 1}, "transactionId"},
		{"blank product", ReservationRequest{TransactionID: "tx-1", ProductID: "  ", LocationID: "S001", Quantity: 1}, "productId"},
		{"missing location", ReservationRequest{TransactionID: "tx-1", ProductID: "P001", Quantity: 1}, "locationId"},
		{"zero quantity", ReservationRequest{TransactionID: "tx-1", ProductID: "P001", LocationID: "S001"}, "quantity"},
		{"negative quantity", ReservationRequest{TransactionID: "tx-1", ProductID: "P001", LocationID: "S001", Quantity: -3}, "quantity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid request, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Errorf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestAdjustmentRequest_ValidateAllowsAnyDelta(t *testing.T) {
	for _, delta := range []int{-10, 0, 20} {
		req := AdjustmentRequest{ProductID: "P001", LocationID: "S001", Delta: delta}
		if err := req.Validate(); err != nil {
			t.Errorf("delta %d: unexpected error %v", delta, err)
		}
	}
}

func TestInsufficientStockError_Is(t *testing.T) {
	err := error(&InsufficientStockError{Key: NewStockKey("P001", "S001"), Available: 7, Requested: 12})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected errors.Is ErrInsufficientStock")
	}
	if got := err.Error(); got != "insufficient stock for S001_P001: available 7, requested 12" {
		t.Errorf("unexpected message %q", got)
	}
}
