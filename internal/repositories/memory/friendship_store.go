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

type FriendshipStore struct {
	mu    sync.RWMutex
	edges map[[2]uuid.UUID]*models.Friendship
}

func NewFriendshipStore() *FriendshipStore {
	return &FriendshipStore{edges: make(map[[2]uuid.UUID]*models.Friendship)}
}

func (s *FriendshipStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var friendships []*models.Friendship
	for _, edge := range s.edges {
		if edge.OwnerID == ownerID {
			clone := *edge
			friendships = append(friendships, &clone)
		}
	}
	sort.Slice(friendships, func(i, j int) bool {
		if !friendships[i].CreatedAt.Equal(friendships[j].CreatedAt) {
			return friendships[i].CreatedAt.Before(friendships[j].CreatedAt)
		}
		return friendships[i].FriendID.String() < friendships[j].FriendID.String()
	})
	return friendships, nil
}

func (s *FriendshipStore) Exists(ctx context.Context, ownerID, friendID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.edges[[2]uuid.UUID{ownerID, friendID}]
	return ok, nil
}

func (s *FriendshipStore) Delete(ctx context.Context, ownerID, friendID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]uuid.UUID{ownerID, friendID}
	if _, ok := s.edges[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.edges, key)
	return nil
}

// addPair inserts both directed edges for a pair, skipping any that
// already exist. Called by FriendRequestStore.Accept while it holds its
// own lock; nothing here calls back into it.
func (s *FriendshipStore) addPair(a, b uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, key := range [][2]uuid.UUID{{a, b}, {b, a}} {
		if _, ok := s.edges[key]; !ok {
			s.edges[key] = &models.Friendship{OwnerID: key[0], FriendID: key[1], CreatedAt: now}
		}
	}
}
