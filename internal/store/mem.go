package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/signalgate/internal/model"
)

// MemStore is an in-memory EventStore for tests and dry evaluation.
type MemStore struct {
	mu     sync.Mutex
	events map[string]model.Event
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{events: make(map[string]model.Event)}
}

// Put implements EventStore.
func (m *MemStore) Put(ev model.Event) error {
	if err := ValidateKey(ev.EventID); err != nil {
		return fmt.Errorf("invalid event id %q: %w", ev.EventID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Tags = append([]string{}, ev.Tags...)
	m.events[ev.EventID] = ev
	return nil
}

// Get implements EventStore.
func (m *MemStore) Get(id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return ev, nil
}

// List implements EventStore. Events are ordered by id.
func (m *MemStore) List() ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

// Len returns the number of stored events.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
