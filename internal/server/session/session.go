// Package session keeps per-operator scan state between requests: who is
// logged in, which item is loaded, and the sticky action mode that survives
// from one scan to the next.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvbarros/estoque/internal/domain/models"
)

// State enumerates the positions of the per-scan recording cycle.
type State string

const (
	StateAwaitingItem         State = "AWAITING_ITEM"
	StateItemLoaded           State = "ITEM_LOADED"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateRecorded             State = "RECORDED"
)

// Mode is the sticky data-entry mode an operator works in across scans.
type Mode string

const (
	ModeIn        Mode = "IN"
	ModeOut       Mode = "OUT"
	ModeAdjust    Mode = "ADJUST"
	ModeInventory Mode = "INVENTORY"
)

// ModeForAction maps a recorded action back to the matching sticky mode.
func ModeForAction(action models.ActionKind) Mode {
	switch action {
	case models.ActionOut:
		return ModeOut
	case models.ActionAdjust:
		return ModeAdjust
	default:
		return ModeIn
	}
}

// Session is the request-scoped scan state of one logged-in operator.
type Session struct {
	Token     string
	UserID    string
	UserName  string
	Mode      Mode
	State     State
	ItemID    string
	ExpiresAt time.Time
}

// Reset returns the session to awaiting-item, keeping the action mode so a
// run of sequential scans stays in IN, OUT or count mode.
func (s *Session) Reset() {
	s.State = StateAwaitingItem
	s.ItemID = ""
}

// Manager holds active sessions keyed by cookie token.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a session manager with the given session lifetime.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a session for an authenticated user.
func (m *Manager) Create(user models.User) Session {
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		UserName:  user.Name,
		Mode:      ModeIn,
		State:     StateAwaitingItem,
		ExpiresAt: m.now().Add(m.ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Token] = sess
	return sess
}

// Get retrieves a live session. Expired sessions are dropped on access.
func (m *Manager) Get(token string) (Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return Session{}, false
	}
	if m.now().After(sess.ExpiresAt) {
		m.Delete(token)
		return Session{}, false
	}
	return sess, true
}

// Update replaces the stored state for the session's token.
func (m *Manager) Update(sess Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.Token]; ok {
		m.sessions[sess.Token] = sess
	}
}

// Delete removes a session.
func (m *Manager) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}
