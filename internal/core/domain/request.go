package domain

import "strings"

type ReservationRequest struct {
	TransactionID string
	ProductID     string
	LocationID    string
	Quantity      int
}

func (r ReservationRequest) Key() StockKey {
	return StockKey{ProductID: r.ProductID, LocationID: r.LocationID}
}

func (r ReservationRequest) Validate() error {
	if strings.TrimSpace(r.TransactionID) == "" {
		return &ValidationError{Field: "transactionId", Reason: "is required"}
	}
	if err := r.Key().Validate(); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	return nil
}

type AdjustmentRequest struct {
	ProductID  string
	LocationID string
	Delta      int // positive = receipt, negative = correction or write-off
}

func (r AdjustmentRequest) Key() StockKey {
	return StockKey{ProductID: r.ProductID, LocationID: r.LocationID}
}

func (r AdjustmentRequest) Validate() error {
	return r.Key().Validate()
}
