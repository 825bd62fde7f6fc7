package ledger

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps ledger rows in memory. Loads return deep copies so
// callers cannot alias stored rows.
type MemoryStore struct {
	mu     sync.Mutex
	people []Person
	saves  int
}

// NewMemoryStore creates a store seeded with people.
func NewMemoryStore(people ...Person) *MemoryStore {
	return &MemoryStore{people: clonePeople(people)}
}

func (s *MemoryStore) Load(_ context.Context) ([]Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePeople(s.people), nil
}

func (s *MemoryStore) Save(_ context.Context, people []Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people = clonePeople(people)
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func clonePeople(people []Person) []Person {
	out := make([]Person, len(people))
	for i, p := range people {
		p.AbsentDates = slices.Clone(p.AbsentDates)
		out[i] = p
	}
	return out
}
