package server

import (
	"errors"
	"sync"
)

var ErrSessionLimit = errors.New("session limit reached")

// Registry holds the live game sessions keyed by ID.
type Registry struct {
	max      int
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns a registry holding at most max sessions; max <= 0
// means no limit.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:      max,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return ErrSessionLimit
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove unregisters a session and returns it. The caller closes it.
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.sessions, id)
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close closes every session.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
	return nil
}
