package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used for tests and single-workspace dev
// mode. The mutex serializes same-tenant upserts the way the Postgres
// row lock does.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Installation
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Installation)}
}

func (m *Memory) Upsert(_ context.Context, in Installation) error {
	rec := in.sanitized(time.Now().UTC())

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[rec.TenantID]; ok {
		rec.InstalledAt = prev.InstalledAt
	}
	m.records[rec.TenantID] = rec
	return nil
}

func (m *Memory) Lookup(_ context.Context, tenantID string) (*Installation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) List(_ context.Context) ([]Installation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Installation, 0, len(m.records))
	for _, rec := range m.records {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TenantID < result[j].TenantID })
	return result, nil
}

func (m *Memory) Close() {}
