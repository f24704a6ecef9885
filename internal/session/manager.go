package session

import "sync"

// Manager owns all user sessions. Mutations go through Do, which serializes
// them per user: two updates from the same chat never interleave, while
// different users proceed in parallel.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	sess Session
}

// NewManager constructs an empty in-memory Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*entry),
	}
}

// Do runs fn under the user's lock with a pointer to their live session,
// creating an idle session on first touch. Changes made by fn are kept.
func (m *Manager) Do(userID int64, fn func(*Session)) {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.sess)
}

// Peek returns a copy of the user's session without creating one.
func (m *Manager) Peek(userID int64) Session {
	m.mu.RLock()
	e, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return Session{Step: StepIdle}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// InProgress reports whether the user is inside a multi-step flow.
func (m *Manager) InProgress(userID int64) bool {
	s := m.Peek(userID)
	return s.Step != StepIdle && s.Step != ""
}

// Reset abandons the user's current flow, keeping their tokens.
func (m *Manager) Reset(userID int64) {
	m.Do(userID, func(s *Session) {
		s.EndFlow()
	})
}

// Remove deletes the session entirely.
func (m *Manager) Remove(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *Manager) entryFor(userID int64) *entry {
	m.mu.RLock()
	e, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.sessions[userID]; ok {
		return e
	}
	e = &entry{sess: Session{Step: StepIdle}}
	m.sessions[userID] = e
	return e
}
