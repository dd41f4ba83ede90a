package port

import "context"

type IdempotencyStore interface {
	// Claim marks a transaction id as taken, returns false if already claimed
	Claim(ctx context.Context, transactionID string) (bool, error)

	// Release frees a claim so the transaction can be retried
	Release(ctx context.Context, transactionID string) error
}
