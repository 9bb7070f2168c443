package session

import (
	"sync"
	"time"

	"github.com/sudodev/sudodev-cli/internal/domain"
)

// Store holds the single active run session. It is a plain data
// holder: validation and lifecycle rules live in the controller, which
// is the only writer. Presentation layers read copies.
type Store struct {
	mu      sync.RWMutex
	session domain.RunSession
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{}
}

// SetRequest records the submitted request and marks the session start
func (s *Store) SetRequest(req domain.RunRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.Request = req
	s.session.StartedAt = time.Now()
}

// SetHandle records the run handle assigned by the remote server
func (s *Store) SetHandle(h domain.RunHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.Handle = &h
}

// ApplyObservation replaces the previous observation wholesale. Logs
// are not merged: the latest poll's log list is authoritative.
func (s *Store) ApplyObservation(obs domain.RunObservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.Observation = &obs
}

// Reset clears the store back to its initial empty state
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = domain.RunSession{}
}

// Session returns a copy of the current session. The observation's log
// slice is copied so readers never alias controller-owned state.
func (s *Store) Session() domain.RunSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.session
	if s.session.Handle != nil {
		h := *s.session.Handle
		out.Handle = &h
	}
	if s.session.Observation != nil {
		obs := *s.session.Observation
		obs.Logs = append([]string(nil), s.session.Observation.Logs...)
		out.Observation = &obs
	}
	return out
}
