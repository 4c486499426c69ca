package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/models"
	"github.com/parley-chat/parley/internal/repositories"
)

// SessionStore honors ExpiresAt on read, standing in for the Redis TTL.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*models.Session
	byAccount map[uuid.UUID]map[string]struct{}
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*models.Session),
		byAccount: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	s.sessions[session.ID] = &stored
	if s.byAccount[session.AccountID] == nil {
		s.byAccount[session.AccountID] = make(map[string]struct{})
	}
	s.byAccount[session.AccountID][session.ID] = struct{}{}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, repositories.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *SessionStore) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.Session
	for id := range s.byAccount[accountID] {
		session, ok := s.sessions[id]
		if !ok || time.Now().After(session.ExpiresAt) {
			continue
		}
		clone := *session
		sessions = append(sessions, &clone)
	}
	return sessions, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.byAccount[session.AccountID], id)
	return nil
}

func (s *SessionStore) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byAccount[accountID] {
		delete(s.sessions, id)
	}
	delete(s.byAccount, accountID)
	return nil
}
