package storage

import (
	"context"
	"sync"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

// MemoryStockStore keeps stock records in a map. Records are copied in and out
// so callers never share memory with the store.
type MemoryStockStore struct {
	mu      sync.RWMutex
	records map[domain.StockKey]domain.StockRecord
}

func NewMemoryStockStore() *MemoryStockStore {
	return &MemoryStockStore{records: make(map[domain.StockKey]domain.StockRecord)}
}

func (m *MemoryStockStore) Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStockStore) Insert(ctx context.Context, record domain.StockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := record.Key()
	if _, ok := m.records[key]; ok {
		return ErrRecordExists
	}
	m.records[key] = record
	return nil
}

func (m *MemoryStockStore) Update(ctx context.Context, record domain.StockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := record.Key()
	cur, ok := m.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != record.Version-1 {
		return ErrOptimisticLock
	}
	m.records[key] = record
	return nil
}

func (m *MemoryStockStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
