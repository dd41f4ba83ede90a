package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("stock record not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrWouldGoNegative      = errors.New("adjustment would make stock negative")
	ErrNegativeResult       = errors.New("resulting quantity is negative")
	ErrPaymentUnavailable   = errors.New("payment could not be confirmed")
	ErrValidation           = errors.New("invalid request")
	ErrDuplicateTransaction = errors.New("transaction already in progress or completed")
)

// InsufficientStockError carries the quantities behind a rejected reservation.
type InsufficientStockError struct {
	Key       StockKey
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Key, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// NegativeResultError is returned by the ledger when a mutation would drive a
// quantity below zero.
type NegativeResultError struct {
	Key       StockKey
	Current   int
	Candidate int
}

func (e *NegativeResultError) Error() string {
	return fmt.Sprintf("stock for %s would become %d (current %d)", e.Key, e.Candidate, e.Current)
}

func (e *NegativeResultError) Unwrap() error { return ErrNegativeResult }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
