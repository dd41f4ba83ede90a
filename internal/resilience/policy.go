package resilience

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"

	defaultCooldown = 30 * time.Second
)

// RetryPolicy bounds how many times a failing call is attempted and how long
// the caller waits between attempts.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
	Backoff     string        `yaml:"backoff"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
}

// BreakerPolicy configures when the circuit opens and how long it stays open.
// Window is the rolling period after which closed-state outcome counts reset;
// zero keeps counting until the next state change.
type BreakerPolicy struct {
	FailureRatio float64       `yaml:"failureRatio"`
	MinimumCalls uint32        `yaml:"minimumCalls"`
	Window       time.Duration `yaml:"window"`
	Cooldown     time.Duration `yaml:"cooldown"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       500 * time.Millisecond,
		Backoff:     BackoffFixed,
		Multiplier:  2,
		MaxDelay:    2 * time.Second,
	}
}

func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{
		FailureRatio: 0.5,
		MinimumCalls: 10,
		Window:       60 * time.Second,
		Cooldown:     defaultCooldown,
	}
}

// newBackOff returns a fresh, single-use schedule allowing MaxAttempts-1 retries.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff
	switch p.Backoff {
	case BackoffExponential:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Delay
		eb.RandomizationFactor = 0
		if p.Multiplier > 1 {
			eb.Multiplier = p.Multiplier
		}
		if p.MaxDelay > 0 {
			eb.MaxInterval = p.MaxDelay
		}
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	default:
		b = backoff.NewConstantBackOff(p.Delay)
	}

	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

func (p BreakerPolicy) cooldown() time.Duration {
	if p.Cooldown <= 0 {
		return defaultCooldown
	}
	return p.Cooldown
}

func (p BreakerPolicy) minimumCalls() uint32 {
	if p.MinimumCalls == 0 {
		return 1
	}
	return p.MinimumCalls
}
