package subscriptions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore — хранилище в памяти с той же семантикой конкуренции,
// что и у pgx-репозитория. Используется в тестах и для запуска без базы.
type MemStore struct {
	mu      sync.Mutex
	subs    map[int64]Subscription
	history map[int64][]HistoryEntry
	nextID  int64
	nextHID int64
	seq     int64 // тикает на каждом Update, чтобы UpdatedAt всегда менялся
}

func NewMemStore() *MemStore {
	return &MemStore{
		subs:    map[int64]Subscription{},
		history: map[int64][]HistoryEntry{},
		nextID:  1,
		nextHID: 1,
	}
}

func (m *MemStore) Get(_ context.Context, id int64) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	out := cloneSub(s)
	return &out, nil
}

func (m *MemStore) List(_ context.Context) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, cloneSub(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) Create(_ context.Context, s *Subscription, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID
	m.nextID++
	m.subs[s.ID] = cloneSub(*s)
	m.appendHistory(s.ID, entry)
	return nil
}

func (m *MemStore) Update(_ context.Context, s *Subscription, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.subs[s.ID]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, s.ID)
	}
	if !cur.UpdatedAt.Equal(s.UpdatedAt) {
		return fmt.Errorf("%w: id=%d", ErrConflict, s.ID)
	}
	m.seq++
	s.UpdatedAt = time.Now().Add(time.Duration(m.seq)) // строго новое значение
	m.subs[s.ID] = cloneSub(*s)
	m.appendHistory(s.ID, entry)
	return nil
}

func (m *MemStore) History(_ context.Context, subscriptionID int64) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry(nil), m.history[subscriptionID]...), nil
}

func (m *MemStore) appendHistory(subID int64, e HistoryEntry) {
	e.ID = m.nextHID
	m.nextHID++
	e.SubscriptionID = subID
	m.history[subID] = append(m.history[subID], e)
}

func cloneSub(s Subscription) Subscription {
	out := s
	out.Schedule = append([]SlotRef(nil), s.Schedule...)
	if s.PausedAt != nil {
		v := *s.PausedAt
		out.PausedAt = &v
	}
	if s.CancelledAt != nil {
		v := *s.CancelledAt
		out.CancelledAt = &v
	}
	return out
}
