package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/observability"
)

var ErrCallPanicked = errors.New("guarded call panicked")

// errCallerGone marks an attempt cut short by the caller's own context. It
// says nothing about the dependency and never counts against the breaker.
var errCallerGone = errors.New("caller context done")

// Call is a single attempt against an unreliable dependency.
type Call[I any] func(ctx context.Context, in I) (bool, error)

// Fallback produces the answer when the call is skipped or exhausted. cause is
// the last failure observed, or the breaker rejection if no attempt ran.
type Fallback[I any] func(ctx context.Context, in I, cause error) bool

type Config struct {
	Name    string
	Retry   RetryPolicy
	Breaker BreakerPolicy
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Guard wraps a Call with bounded retries and a circuit breaker shared by every
// caller. Do never returns an error and never panics.
type Guard[I any] struct {
	name     string
	call     Call[I]
	fallback Fallback[I]
	retry    RetryPolicy
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
	metrics  *observability.Metrics

	mu        sync.RWMutex
	listeners []func(from, to State)
}

func New[I any](cfg Config, call Call[I], fallback Fallback[I]) *Guard[I] {
	if cfg.Name == "" {
		cfg.Name = "guarded-call"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	if fallback == nil {
		fallback = func(context.Context, I, error) bool { return false }
	}

	g := &Guard[I]{
		name:     cfg.Name,
		call:     call,
		fallback: fallback,
		retry:    cfg.Retry,
		log:      cfg.Logger.With(zap.String("component", "guard"), zap.String("call", cfg.Name)),
		metrics:  cfg.Metrics,
	}

	ratio := cfg.Breaker.FailureRatio
	minCalls := cfg.Breaker.minimumCalls()
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Breaker.Window,
		Timeout:     cfg.Breaker.cooldown(),
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < minCalls {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: g.onStateChange,
	})
	g.metrics.BreakerState.WithLabelValues(cfg.Name).Set(float64(StateClosed))

	return g
}

// OnStateChange registers fn to be told about breaker transitions. fn runs
// while the breaker is locked and must not call back into the Guard.
func (g *Guard[I]) OnStateChange(fn func(from, to State)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

func (g *Guard[I]) Name() string { return g.name }

func (g *Guard[I]) State() State {
	return fromBreaker(g.breaker.State())
}

func (g *Guard[I]) Counts() Counts {
	c := g.breaker.Counts()
	return Counts{
		Requests:            c.Requests,
		Successes:           c.TotalSuccesses,
		Failures:            c.TotalFailures,
		ConsecutiveFailures: c.ConsecutiveFailures,
	}
}

// Do runs the call through the breaker, retrying failures per the retry
// policy, and falls back when the breaker rejects or attempts run out.
func (g *Guard[I]) Do(ctx context.Context, in I) bool {
	var (
		result  bool
		lastErr error
		attempt int
	)

	op := func() error {
		if err := ctx.Err(); err != nil {
			g.countAttempt("canceled")
			if lastErr == nil {
				lastErr = err
			}
			return backoff.Permanent(err)
		}
		attempt++
		out, err := g.breaker.Execute(func() (interface{}, error) {
			ok, err := g.invoke(ctx, in)
			if err != nil && ctx.Err() != nil {
				return ok, fmt.Errorf("%w: %w", errCallerGone, err)
			}
			return ok, err
		})
		switch {
		case err == nil:
			g.countAttempt("success")
			result, _ = out.(bool)
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			g.countAttempt("rejected")
			if lastErr == nil {
				lastErr = err
			}
			return backoff.Permanent(err)
		case errors.Is(err, errCallerGone):
			g.countAttempt("canceled")
			lastErr = err
			return backoff.Permanent(err)
		default:
			g.countAttempt("failure")
			lastErr = err
			return err
		}
	}

	notify := func(err error, next time.Duration) {
		g.log.Debug("guarded_call_retry",
			zap.Int("attempt", attempt),
			zap.Duration("next_delay", next),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(g.retry.newBackOff(), ctx), notify)
	if err == nil {
		return result
	}
	if lastErr == nil {
		lastErr = err
	}

	reason := "exhausted"
	switch {
	case errors.Is(lastErr, gobreaker.ErrOpenState), errors.Is(lastErr, gobreaker.ErrTooManyRequests):
		reason = "open"
	case ctx.Err() != nil:
		reason = "canceled"
	}
	g.metrics.Fallbacks.WithLabelValues(g.name, reason).Inc()
	g.log.Warn("guarded_call_fallback",
		zap.String("reason", reason),
		zap.Int("attempts", attempt),
		zap.String("breaker_state", g.State().String()),
		zap.Error(lastErr),
	)

	return g.runFallback(ctx, in, lastErr)
}

func (g *Guard[I]) invoke(ctx context.Context, in I) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallPanicked, r)
		}
	}()
	return g.call(ctx, in)
}

func (g *Guard[I]) runFallback(ctx context.Context, in I, cause error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("guarded_call_fallback_panic", zap.Any("panic", r))
			ok = false
		}
	}()
	return g.fallback(ctx, in, cause)
}

func (g *Guard[I]) countAttempt(outcome string) {
	g.metrics.CallAttempts.WithLabelValues(g.name, outcome).Inc()
}

func (g *Guard[I]) onStateChange(_ string, from, to gobreaker.State) {
	f, t := fromBreaker(from), fromBreaker(to)
	g.metrics.BreakerState.WithLabelValues(g.name).Set(float64(t))
	g.log.Warn("breaker_state_change",
		zap.String("from", f.String()),
		zap.String("to", t.String()),
	)

	g.mu.RLock()
	listeners := g.listeners
	g.mu.RUnlock()
	for _, fn := range listeners {
		fn(f, t)
	}
}
