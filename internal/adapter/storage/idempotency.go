package storage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "reservation:tx:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// RedisIdempotencyStore claims transaction ids with SETNX so concurrent
// replicas agree on which request owns a transaction.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (r *RedisIdempotencyStore) Claim(ctx context.Context, transactionID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+transactionID, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisIdempotencyStore) Release(ctx context.Context, transactionID string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+transactionID).Err()
}

// MemoryIdempotencyStore is the single-process claim set. Claims do not expire.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{claimed: make(map[string]struct{})}
}

func (m *MemoryIdempotencyStore) Claim(ctx context.Context, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.claimed[transactionID]; ok {
		return false, nil
	}
	m.claimed[transactionID] = struct{}{}
	return true, nil
}

func (m *MemoryIdempotencyStore) Release(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	delete(m.claimed, transactionID)
	m.mu.Unlock()
	return nil
}
