package memory

import (
	"context"
	"sync"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

// SessionMemory keeps sessions in process. Used by the CLI and when no redis
// is configured.
type SessionMemory struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewSessionMemory() repositories.SessionStore {
	return &SessionMemory{sessions: make(map[string]*models.Session)}
}

func (m *SessionMemory) Get(ctx context.Context, key string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return session.Clone(), nil
}

func (m *SessionMemory) Set(ctx context.Context, key string, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil {
		delete(m.sessions, key)
		return nil
	}
	m.sessions[key] = session.Storable()
	return nil
}

func (m *SessionMemory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, key)
	return nil
}
