package store

import (
	"context"
	"sync"
)

// Memory keeps appended records in process. It is the default store when
// no DATABASE_URL is configured and the fixture used across tests.
type Memory struct {
	mu      sync.Mutex
	entries []LedgerEntry
	points  []PricePoint
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AppendLedgerEntry(_ context.Context, entry LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) AppendPricePoints(_ context.Context, points []PricePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, points...)
	return nil
}

func (m *Memory) LedgerEntries() []LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) PricePoints() []PricePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PricePoint, len(m.points))
	copy(out, m.points)
	return out
}
