package payment

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/observability"
	"github.com/rl1809/inventory-reservation/internal/port"
	"github.com/rl1809/inventory-reservation/internal/resilience"
)

const callName = "payment"

// GuardedConfirmer is the only caller of the raw gateway. Every failure mode,
// including an open circuit, collapses into a false confirmation.
type GuardedConfirmer struct {
	guard *resilience.Guard[string]
}

func NewGuardedConfirmer(gateway port.PaymentGateway, retry resilience.RetryPolicy, breaker resilience.BreakerPolicy, log *zap.Logger, metrics *observability.Metrics) *GuardedConfirmer {
	if log == nil {
		log = zap.NewNop()
	}

	fallback := func(ctx context.Context, txID string, cause error) bool {
		observability.LoggerFrom(ctx, log).Warn("payment_fallback",
			zap.String("transaction_id", txID),
			zap.Error(cause),
		)
		return false
	}

	guard := resilience.New[string](resilience.Config{
		Name:    callName,
		Retry:   retry,
		Breaker: breaker,
		Logger:  log,
		Metrics: metrics,
	}, gateway.ConfirmPayment, fallback)

	return &GuardedConfirmer{guard: guard}
}

func (c *GuardedConfirmer) Confirm(ctx context.Context, transactionID string) bool {
	return c.guard.Do(ctx, transactionID)
}

// Guard exposes the breaker for health reporting.
func (c *GuardedConfirmer) Guard() *resilience.Guard[string] {
	return c.guard
}
