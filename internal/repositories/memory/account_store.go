// Package memory provides in-process implementations of the repository
// interfaces. They enforce the same constraints as the Postgres
// implementations and back the service tests, which need neither a
// database nor network.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/models"
	"github.com/parley-chat/parley/internal/repositories"
)

type AccountStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Account
	byEmail map[string]uuid.UUID
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    make(map[uuid.UUID]*models.Account),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[account.Email]; ok {
		return repositories.ErrEmailTaken
	}

	now := time.Now()
	account.ID = uuid.New()
	account.Status = models.StatusOffline
	account.LastSeenAt = now
	account.CreatedAt = now
	account.UpdatedAt = now

	stored := *account
	s.byID[account.ID] = &stored
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *AccountStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*models.Account
	for _, id := range ids {
		if account, ok := s.byID[id]; ok {
			clone := *account
			accounts = append(accounts, &clone)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts, nil
}

func (s *AccountStore) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	account.DisplayName = displayName
	account.UpdatedAt = time.Now()
	return nil
}

func (s *AccountStore) SetPresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	account.Status = status
	account.LastSeenAt = lastSeen
	account.UpdatedAt = time.Now()
	return nil
}

func (s *AccountStore) MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]models.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []models.Presence
	for _, account := range s.byID {
		if account.Status == models.StatusOnline && account.LastSeenAt.Before(cutoff) {
			account.Status = models.StatusOffline
			account.UpdatedAt = time.Now()
			reaped = append(reaped, models.Presence{
				AccountID: account.ID,
				Status:    models.StatusOffline,
				LastSeen:  account.LastSeenAt,
			})
		}
	}
	return reaped, nil
}
