package memory

import (
	"context"
	"errors"
	"sync"

	"expensetracker/internal/store"
)

// Store keeps items in process memory, in insertion order. It is used for
// tests and local development.
type Store struct {
	mu    sync.Mutex
	order []string
	items map[string]store.Item
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string]store.Item)}
}

// NewSeeded returns a store pre-populated with items, in the given order.
func NewSeeded(items ...store.Item) *Store {
	s := New()
	for _, it := range items {
		_ = s.Put(context.Background(), it)
	}
	return s
}

// Put stores the item, replacing any item with the same id.
func (s *Store) Put(_ context.Context, it store.Item) error {
	id := it.ID()
	if id == "" {
		return errors.New("item has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		s.order = append(s.order, id)
	}
	s.items[id] = it.Clone()
	return nil
}

// ScanAll returns copies of every item.
func (s *Store) ScanAll(_ context.Context) ([]store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// UpdateFields sets the attributes under one lock, creating the item if needed.
func (s *Store) UpdateFields(_ context.Context, id string, fields store.Item) error {
	if id == "" {
		return errors.New("empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		it = store.Item{"id": store.S(id)}
		s.order = append(s.order, id)
	} else {
		it = it.Clone()
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		it[k] = v
	}
	s.items[id] = it
	return nil
}

// DeleteByID removes the item if present.
func (s *Store) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Close() error { return nil }
