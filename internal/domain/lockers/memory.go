package lockers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore — хранилище в памяти, семантика та же, что у pgx-репозитория.
type MemStore struct {
	mu      sync.Mutex
	rentals map[int64]Rental
	nextID  int64
	seq     int64
}

func NewMemStore() *MemStore {
	return &MemStore{rentals: map[int64]Rental{}, nextID: 1}
}

func (m *MemStore) Get(_ context.Context, id int64) (*Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentals[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	out := r
	return &out, nil
}

func (m *MemStore) List(_ context.Context) ([]Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Rental, 0, len(m.rentals))
	for _, r := range m.rentals {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemStore) Create(_ context.Context, r *Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID
	m.nextID++
	m.rentals[r.ID] = *r
	return nil
}

func (m *MemStore) Update(_ context.Context, r *Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rentals[r.ID]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, r.ID)
	}
	if !cur.UpdatedAt.Equal(r.UpdatedAt) {
		return fmt.Errorf("%w: id=%d", ErrConflict, r.ID)
	}
	m.seq++
	r.UpdatedAt = time.Now().Add(time.Duration(m.seq))
	m.rentals[r.ID] = *r
	return nil
}

func (m *MemStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rentals[id]; !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	delete(m.rentals, id)
	return nil
}
