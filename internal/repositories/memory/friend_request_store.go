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

// FriendRequestStore owns request rows and, like the Postgres
// transaction it stands in for, writes friendship edges through the
// FriendshipStore as part of Accept.
type FriendRequestStore struct {
	mu          sync.Mutex
	requests    map[uuid.UUID]*models.FriendRequest
	pairs       map[[2]uuid.UUID]uuid.UUID
	friendships *FriendshipStore
}

func NewFriendRequestStore(friendships *FriendshipStore) *FriendRequestStore {
	return &FriendRequestStore{
		requests:    make(map[uuid.UUID]*models.FriendRequest),
		pairs:       make(map[[2]uuid.UUID]uuid.UUID),
		friendships: friendships,
	}
}

func (s *FriendRequestStore) Create(ctx context.Context, request *models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := [2]uuid.UUID{request.SenderID, request.ReceiverID}
	if _, ok := s.pairs[pair]; ok {
		return repositories.ErrDuplicateRequest
	}

	now := time.Now()
	request.ID = uuid.New()
	request.Status = models.RequestPending
	request.CreatedAt = now
	request.UpdatedAt = now

	stored := *request
	s.requests[request.ID] = &stored
	s.pairs[pair] = request.ID
	return nil
}

func (s *FriendRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *request
	return &clone, nil
}

func (s *FriendRequestStore) Accept(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if request.Status != models.RequestPending {
		return nil, repositories.ErrStaleTransition
	}

	request.Status = models.RequestAccepted
	request.UpdatedAt = time.Now()
	s.friendships.addPair(request.SenderID, request.ReceiverID)

	clone := *request
	return &clone, nil
}

func (s *FriendRequestStore) Reject(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if request.Status != models.RequestPending {
		return nil, repositories.ErrStaleTransition
	}

	request.Status = models.RequestRejected
	request.UpdatedAt = time.Now()

	clone := *request
	return &clone, nil
}

func (s *FriendRequestStore) ListPendingForReceiver(ctx context.Context, receiverID uuid.UUID) ([]*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requests []*models.FriendRequest
	for _, request := range s.requests {
		if request.ReceiverID == receiverID && request.Status == models.RequestPending {
			clone := *request
			requests = append(requests, &clone)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return requests[i].ID.String() < requests[j].ID.String()
	})
	return requests, nil
}
