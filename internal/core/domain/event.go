package domain

import "time"

type StockEventType string

const (
	StockEventReserved StockEventType = "stock.reserved"
	StockEventAdjusted StockEventType = "stock.adjusted"
)

// StockEvent is emitted after a stock mutation has been persisted.
type StockEvent struct {
	Type          StockEventType `json:"type"`
	TransactionID string         `json:"transactionId,omitempty"`
	ProductID     string         `json:"productId"`
	LocationID    string         `json:"locationId"`
	Delta         int            `json:"delta"`
	Quantity      int            `json:"quantity"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

func NewStockEvent(typ StockEventType, txID string, rec *StockRecord, delta int) StockEvent {
	return StockEvent{
		Type:          typ,
		TransactionID: txID,
		ProductID:     rec.ProductID,
		LocationID:    rec.LocationID,
		Delta:         delta,
		Quantity:      rec.Quantity,
		OccurredAt:    time.Now().UTC(),
	}
}
