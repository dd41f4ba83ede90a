package domain

import (
	"strings"
	"time"
)

// StockKey identifies one stock counter.
type StockKey struct {
	ProductID  string
	LocationID string
}

func NewStockKey(productID, locationID string) StockKey {
	return StockKey{ProductID: productID, LocationID: locationID}
}

func (k StockKey) String() string {
	return k.LocationID + "_" + k.ProductID
}

func (k StockKey) Validate() error {
	if strings.TrimSpace(k.ProductID) == "" {
		return &ValidationError{Field: "productId", Reason: "is required"}
	}
	if strings.TrimSpace(k.LocationID) == "" {
		return &ValidationError{Field: "locationId", Reason: "is required"}
	}
	return nil
}

type StockRecord struct {
	ProductID  string
	LocationID string
	Quantity   int
	Version    int64 // bumped on every persisted write
	UpdatedAt  time.Time
}

func (r StockRecord) Key() StockKey {
	return StockKey{ProductID: r.ProductID, LocationID: r.LocationID}
}
