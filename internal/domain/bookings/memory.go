package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore — хранилище в памяти, семантика та же, что у pgx-репозитория.
type MemStore struct {
	mu       sync.Mutex
	bookings map[int64]Booking
	nextID   int64
	seq      int64
}

func NewMemStore() *MemStore {
	return &MemStore{bookings: map[int64]Booking{}, nextID: 1}
}

func (m *MemStore) Get(_ context.Context, id int64) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	out := b
	return &out, nil
}

func (m *MemStore) List(_ context.Context) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	sortBookings(out)
	return out, nil
}

func (m *MemStore) ListBetween(_ context.Context, from, to time.Time) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if !b.Date.Before(from) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (m *MemStore) Create(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextID
	m.nextID++
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemStore) Update(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bookings[b.ID]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, b.ID)
	}
	if !cur.UpdatedAt.Equal(b.UpdatedAt) {
		return fmt.Errorf("%w: id=%d", ErrConflict, b.ID)
	}
	m.seq++
	b.UpdatedAt = time.Now().Add(time.Duration(m.seq))
	m.bookings[b.ID] = *b
	return nil
}

func sortBookings(bs []Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].Date.Equal(bs[j].Date) {
			return bs[i].Date.Before(bs[j].Date)
		}
		return bs[i].ID < bs[j].ID
	})
}
