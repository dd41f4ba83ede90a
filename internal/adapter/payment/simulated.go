package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var ErrGatewayUnavailable = errors.New("payment gateway connection failed")

// SimulatedGateway stands in for a remote payment provider. It fails a
// configurable fraction of calls with ErrGatewayUnavailable.
type SimulatedGateway struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	failureRate float64
	latency     time.Duration
}

func NewSimulatedGateway(failureRate float64, seed int64, latency time.Duration) *SimulatedGateway {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedGateway{
		rnd:         rand.New(rand.NewSource(seed)),
		failureRate: failureRate,
		latency:     latency,
	}
}

func (g *SimulatedGateway) ConfirmPayment(ctx context.Context, transactionID string) (bool, error) {
	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.C:
		}
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()

	if roll < g.failureRate {
		return false, fmt.Errorf("confirm %s: %w", transactionID, ErrGatewayUnavailable)
	}
	return true, nil
}
