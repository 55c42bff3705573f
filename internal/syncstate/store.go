package syncstate

import "sync"

// Store owns the current State. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// NewStore returns a store in the Idle state.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and notifies subscribers with the new state.
func (s *Store) Dispatch(a Action) State {
	next, _ := s.TryDispatch(a, nil)
	return next
}

// TryDispatch applies a only if guard accepts the current state. The guard
// and the transition happen under one lock.
func (s *Store) TryDispatch(a Action, guard func(State) error) (State, error) {
	s.mu.Lock()
	if guard != nil {
		if err := guard(s.state); err != nil {
			cur := s.state
			s.mu.Unlock()
			return cur, err
		}
	}
	s.state = Reduce(s.state, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next, nil
}

// Subscribe registers fn to be called after every dispatch. The returned
// function removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
