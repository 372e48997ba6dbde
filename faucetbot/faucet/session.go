package faucet

import (
	"context"
	"sync"
	"time"
)

// SessionManager keeps a per-user in-memory lock so a user cannot run two
// overlapping claim interactions. This is interaction-level protection; the
// ledger's compare-and-swap is what actually guards the record.
type SessionManager struct {
	active       sync.Map
	lockDuration time.Duration
}

func NewSessionManager(lockDuration time.Duration) *SessionManager {
	return &SessionManager{lockDuration: lockDuration}
}

// Lock acquires a claim session for the user. Returns false when a live
// session already exists.
func (m *SessionManager) Lock(userID string) bool {
	now := time.Now()
	expiry := now.Add(m.lockDuration)

	if prev, loaded := m.active.LoadOrStore(userID, expiry); loaded {
		if now.Before(prev.(time.Time)) {
			return false
		}
		// Stale entry left behind by a session that never released.
		m.active.Store(userID, expiry)
	}
	return true
}

func (m *SessionManager) Release(userID string) {
	m.active.Delete(userID)
}

func (m *SessionManager) HasActiveSession(userID string) bool {
	expiry, exists := m.active.Load(userID)
	return exists && time.Now().Before(expiry.(time.Time))
}

func (m *SessionManager) cleanupExpired() {
	now := time.Now()
	m.active.Range(func(key, value interface{}) bool {
		if now.After(value.(time.Time)) {
			m.active.Delete(key)
		}
		return true
	})
}

// StartCleanupRoutine periodically drops expired sessions until ctx ends.
func (m *SessionManager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanupExpired()
			}
		}
	}()
}
