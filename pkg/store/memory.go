package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a Backend backed by maps. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]Record

	nextSupplyID int64
	supplies     map[string]Supply // by name
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[int64]Record),
		supplies: make(map[string]Supply),
	}
}

func (m *Memory) Insert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.records[rec.ID] = *rec
	return nil
}

func (m *Memory) Get(_ context.Context, id int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]Record, error) {
	m.mu.RLock()
	result := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		if f.Match(rec.Report) {
			result = append(result, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Report.Time.Equal(b.Report.Time) {
			return a.ID < b.ID
		}
		return a.Report.Time.Before(b.Report.Time)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result, nil
}

func (m *Memory) Update(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		return ErrNotFound
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) AddSupply(_ context.Context, s *Supply) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.supplies[s.Name]; ok {
		return ErrDuplicate
	}
	m.nextSupplyID++
	s.ID = m.nextSupplyID
	s.Expires = Date(s.Expires)
	m.supplies[s.Name] = *s
	return nil
}

func (m *Memory) ListSupplies(_ context.Context) ([]Supply, error) {
	m.mu.RLock()
	result := make([]Supply, 0, len(m.supplies))
	for _, s := range m.supplies {
		result = append(result, s)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) SetQuantity(_ context.Context, name string, quantity int) error {
	if err := validQuantity(quantity); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.supplies[name]
	if !ok {
		return ErrNotFound
	}
	s.Quantity = quantity
	m.supplies[name] = s
	return nil
}

func (m *Memory) RemoveSupply(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.supplies[name]; !ok {
		return ErrNotFound
	}
	delete(m.supplies, name)
	return nil
}

func (m *Memory) Expiring(_ context.Context, from, to time.Time) ([]Supply, error) {
	from, to = Date(from), Date(to)

	m.mu.RLock()
	var result []Supply
	for _, s := range m.supplies {
		if !s.Expires.Before(from) && !s.Expires.After(to) {
			result = append(result, s)
		}
	}
	m.mu.RUnlock()

	sortByExpiry(result)
	return result, nil
}
