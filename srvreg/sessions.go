package srvreg

import (
	"context"
	"sync"

	"github.com/dclsuite/loadplan/planner"
	"github.com/dclsuite/loadplan/repository"
)

// SessionManager hands out one planner session per shipment. Sessions are
// created lazily on first touch and reloaded explicitly via the session
// endpoint; two requests for the same shipment share one session and are
// serialized by Acquire.
type SessionManager struct {
	store    repository.StoreService
	mu       sync.Mutex
	sessions map[string]*planner.Session
	locks    map[string]*sync.Mutex
}

// NewSessionManager creates an empty manager over the given store backend.
func NewSessionManager(store repository.StoreService) *SessionManager {
	return &SessionManager{
		store:    store,
		sessions: make(map[string]*planner.Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Acquire returns the session for a shipment with its lock held, loading it
// from the store on first use. The caller must invoke release when done.
func (m *SessionManager) Acquire(ctx context.Context, shipmentID string) (*planner.Session, func(), error) {
	for {
		m.mu.Lock()
		session, ok := m.sessions[shipmentID]
		if !ok {
			session = planner.NewSession(m.store, shipmentID)
			m.sessions[shipmentID] = session
			m.locks[shipmentID] = &sync.Mutex{}
		}
		lock := m.locks[shipmentID]
		m.mu.Unlock()

		lock.Lock()

		// A concurrent first load may have failed and evicted the entry
		// while we waited on the lock. Start over with a fresh session.
		m.mu.Lock()
		current := m.sessions[shipmentID]
		m.mu.Unlock()
		if current != session {
			lock.Unlock()
			continue
		}

		if !ok {
			if err := session.Reload(ctx); err != nil {
				lock.Unlock()
				m.mu.Lock()
				delete(m.sessions, shipmentID)
				delete(m.locks, shipmentID)
				m.mu.Unlock()
				return nil, nil, err
			}
		}
		return session, lock.Unlock, nil
	}
}

// Reload drops the cached session state and refetches it from the store.
func (m *SessionManager) Reload(ctx context.Context, shipmentID string) (*planner.Session, error) {
	session, release, err := m.Acquire(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := session.Reload(ctx); err != nil {
		return nil, err
	}
	return session, nil
}
