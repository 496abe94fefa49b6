package monitor

import (
	"sync"
	"time"
)

// Session is the per-event polling state a worker carries between polls:
// where dedup stands and whether the post-delivery cooldown is in force.
type Session struct {
	LastPlayID    string
	LastCount     int
	CooldownUntil time.Time
}

// SessionStore holds sessions for all monitored events. Discovery discards
// an event's session when its worker is reaped, so a game that reappears
// starts from a clean slate.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for an event, creating it on first use.
func (s *SessionStore) Get(eventID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[eventID]
	if !ok {
		sess = &Session{}
		s.sessions[eventID] = sess
	}
	return sess
}

// Discard drops an event's session.
func (s *SessionStore) Discard(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, eventID)
}

// Len reports how many events currently hold a session.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
