package lock

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/observability"
)

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex is an in-process coordinator holding one mutex per stock key.
// Entries are reference counted and dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[domain.StockKey]*keyedEntry
	metrics *observability.Metrics
}

func NewKeyedMutex(metrics *observability.Metrics) *KeyedMutex {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &KeyedMutex{
		entries: make(map[domain.StockKey]*keyedEntry),
		metrics: metrics,
	}
}

// Acquire blocks until key is free. ctx is not consulted: waiting on a
// sync.Mutex cannot be abandoned.
func (k *KeyedMutex) Acquire(_ context.Context, key domain.StockKey) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	start := time.Now()
	e.mu.Lock()
	k.metrics.LockWait.WithLabelValues("memory").Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
