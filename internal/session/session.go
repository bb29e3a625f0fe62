// Package session keeps the per-user interaction state: which list plain text
// goes to, and whether the next message is a group name or a join code.
//
// Sessions live in process memory and are lost on restart. Losing one only
// means the user has to pick their list again; nothing stored is affected.
package session

import (
	"sync"

	"github.com/sakif/sharedlist/internal/model"
)

// Mode is what the next plain-text message from a user means.
type Mode int

const (
	Idle Mode = iota
	AwaitingGroupName
	AwaitingGroupCode
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case AwaitingGroupName:
		return "awaiting_group_name"
	case AwaitingGroupCode:
		return "awaiting_group_code"
	default:
		return "unknown"
	}
}

// Session is a snapshot of one user's state.
type Session struct {
	Mode       Mode
	ActiveList model.ListRef
}

// Manager holds every user's session. All methods are safe for concurrent use
// and each one is atomic for the user it touches.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// get must be called with m.mu held.
func (m *Manager) get(user string) *Session {
	s, ok := m.sessions[user]
	if !ok {
		s = &Session{}
		m.sessions[user] = s
	}
	return s
}

// Get returns a copy of user's session, creating an empty one on first
// access.
func (m *Manager) Get(user string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.get(user)
}

// SetActiveList selects the list plain text is appended to. The zero ListRef
// deselects.
func (m *Manager) SetActiveList(user string, ref model.ListRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(user).ActiveList = ref
}

// SetAwaiting puts user into mode. Setting the mode the user is already in is
// a no-op.
func (m *Manager) SetAwaiting(user string, mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(user).Mode = mode
}

// ConsumeAwaiting returns user's mode and resets it to Idle in one step. Of
// two concurrent callers only one sees a non-Idle mode.
func (m *Manager) ConsumeAwaiting(user string) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(user)
	mode := s.Mode
	s.Mode = Idle
	return mode
}

// ClearActiveIf deselects user's active list if it is still ref. The router
// uses it to drop a group the user turned out not to belong to without
// clobbering a selection made in the meantime.
func (m *Manager) ClearActiveIf(user string, ref model.ListRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(user)
	if s.ActiveList != ref {
		return false
	}
	s.ActiveList = model.ListRef{}
	return true
}

// Len returns the number of sessions held.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
