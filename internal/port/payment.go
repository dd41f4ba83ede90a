package port

import "context"

// PaymentGateway is the raw, unreliable payment dependency.
type PaymentGateway interface {
	ConfirmPayment(ctx context.Context, transactionID string) (bool, error)
}

// PaymentConfirmer is the guarded view of the gateway; it always answers.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, transactionID string) bool
}
