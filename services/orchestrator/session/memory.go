package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

// MemoryRegistry implements Registry with an in-process map.
//
// Used in tests and in lightweight mode when no Redis address is
// configured. Expiry is checked lazily on access against the injected
// clock, mirroring the TTL behavior of the Redis driver.
type MemoryRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	users    map[string]bool
	sessions map[string]*memorySession
}

type memorySession struct {
	userID    string
	createdAt time.Time
	activity  time.Time
	expiresAt time.Time
}

// NewMemoryRegistry creates an in-memory registry with the given TTL.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &MemoryRegistry{
		ttl:      ttl,
		now:      time.Now,
		users:    make(map[string]bool),
		sessions: make(map[string]*memorySession),
	}
}

// WithClock overrides the registry's time source. Test hook.
func (m *MemoryRegistry) WithClock(now func() time.Time) *MemoryRegistry {
	m.now = now
	return m
}

// CreateUser implements Registry.
func (m *MemoryRegistry) CreateUser(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID := uuid.New().String()
	m.users[userID] = true
	return userID, nil
}

// CreateSession implements Registry.
func (m *MemoryRegistry) CreateSession(ctx context.Context, userID string) (datatypes.SessionData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	isNewUser := false
	if userID == "" || !m.users[userID] {
		userID = uuid.New().String()
		m.users[userID] = true
		isNewUser = true
	}

	sessionID := uuid.New().String()
	now := m.now().UTC()
	m.sessions[sessionID] = &memorySession{
		userID:    userID,
		createdAt: now,
		activity:  now,
		expiresAt: now.Add(m.ttl),
	}
	return datatypes.SessionData{
		UserID:       userID,
		SessionID:    sessionID,
		IsNewUser:    isNewUser,
		IsNewSession: true,
	}, nil
}

// ValidateSession implements Registry.
func (m *MemoryRegistry) ValidateSession(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.liveSessionLocked(sessionID)
	if sess == nil {
		return "", ErrSessionInvalid
	}
	now := m.now().UTC()
	sess.activity = now
	sess.expiresAt = now.Add(m.ttl)
	return sess.userID, nil
}

// SessionInfo implements Registry.
func (m *MemoryRegistry) SessionInfo(ctx context.Context, sessionID string) (*datatypes.SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.liveSessionLocked(sessionID)
	if sess == nil {
		return nil, ErrSessionInvalid
	}
	return &datatypes.SessionInfo{
		SessionID:  sessionID,
		UserID:     sess.userID,
		CreatedAt:  sess.createdAt,
		LastActive: sess.activity,
	}, nil
}

// DeleteSession implements Registry.
func (m *MemoryRegistry) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.liveSessionLocked(sessionID) == nil {
		return ErrSessionInvalid
	}
	delete(m.sessions, sessionID)
	return nil
}

// Close implements Registry.
//
// Drops all stored state but leaves the registry usable, matching the
// Redis driver where Close does not tear down the shared client.
func (m *MemoryRegistry) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]*memorySession)
	m.users = make(map[string]bool)
	return nil
}

// liveSessionLocked returns the session if it exists and has not expired,
// dropping it lazily when the TTL has elapsed. Callers must hold mu.
func (m *MemoryRegistry) liveSessionLocked(sessionID string) *memorySession {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	if m.now().UTC().After(sess.expiresAt) {
		delete(m.sessions, sessionID)
		return nil
	}
	return sess
}

// Compile-time interface compliance.
var _ Registry = (*MemoryRegistry)(nil)
