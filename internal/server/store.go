package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/compliance-cli/internal/compliance"
)

// Analysis is one uploaded registry/EPC pair and its result.
type Analysis struct {
	ID       string             `json:"id"`
	Created  time.Time          `json:"created_at"`
	Registry string             `json:"registry"`
	EPC      string             `json:"epc"`
	Result   *compliance.Result `json:"-"`
}

// Store keeps analyses in process memory. When full, the oldest analysis is
// evicted.
type Store struct {
	max int

	mu    sync.Mutex
	order []string
	items map[string]*Analysis
}

// NewStore creates a store holding at most max analyses. Non-positive max
// means unbounded.
func NewStore(max int) *Store {
	return &Store{max: max, items: make(map[string]*Analysis)}
}

// Add stores res under a fresh id.
func (s *Store) Add(registry, epc string, res *compliance.Result) *Analysis {
	a := &Analysis{
		ID:       uuid.NewString(),
		Created:  time.Now().UTC(),
		Registry: registry,
		EPC:      epc,
		Result:   res,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = a
	s.order = append(s.order, a.ID)
	for s.max > 0 && len(s.order) > s.max {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
	return a
}

// Replace swaps the result of an existing analysis.
func (s *Store) Replace(id, registry, epc string, res *compliance.Result) (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[id]
	if !ok {
		return nil, false
	}
	a := &Analysis{ID: id, Created: old.Created, Registry: registry, EPC: epc, Result: res}
	s.items[id] = a
	return a, true
}

// Get returns the analysis with id.
func (s *Store) Get(id string) (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	return a, ok
}

// Delete discards an analysis. It reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of stored analyses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
