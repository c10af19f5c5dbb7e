package behavior

import "sync"

// Store persists profiles. Implementations return copies so callers
// can never mutate stored state in place.
type Store interface {
	Get(userID string) (*Profile, bool)
	Put(p *Profile)
	List() []*Profile
	Reset()
}

// MemoryStore is the in-memory Store used in every deployment mode.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

func (s *MemoryStore) Get(userID string) (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

func (s *MemoryStore) Put(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p.clone()
}

func (s *MemoryStore) List() []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.clone())
	}
	return out
}

func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string]*Profile)
}
