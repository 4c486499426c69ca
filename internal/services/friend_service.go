package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/models"
	"github.com/parley-chat/parley/internal/repositories"
)

var (
	ErrSelfRequest  = errors.New("cannot send a friend request to yourself")
	ErrForbidden    = errors.New("only the request receiver may act on it")
	ErrInvalidState = errors.New("request is no longer pending")
)

// FriendService runs the request lifecycle: send, accept, reject, and
// edge removal. Accepting is the only way friendship edges come into
// existence.
type FriendService struct {
	directory   *DirectoryService
	requests    repositories.FriendRequestRepository
	friendships repositories.FriendshipRepository
	feed        feed.Feed
	logger      *slog.Logger
}

func NewFriendService(
	directory *DirectoryService,
	requests repositories.FriendRequestRepository,
	friendships repositories.FriendshipRepository,
	changeFeed feed.Feed,
	logger *slog.Logger,
) *FriendService {
	return &FriendService{
		directory:   directory,
		requests:    requests,
		friendships: friendships,
		feed:        changeFeed,
		logger:      logger,
	}
}

// Send resolves receiverEmail and creates a pending request. A second
// send for the same ordered pair fails with ErrDuplicateRequest no
// matter what state the first request reached; callers should render
// that as a benign notice, not a fault.
func (s *FriendService) Send(ctx context.Context, senderID uuid.UUID, receiverEmail string) (uuid.UUID, error) {
	receiverID, err := s.directory.Resolve(ctx, receiverEmail)
	if err != nil {
		return uuid.Nil, err
	}
	if receiverID == senderID {
		return uuid.Nil, ErrSelfRequest
	}

	request := &models.FriendRequest{SenderID: senderID, ReceiverID: receiverID}
	err = s.requests.Create(ctx, request)
	if errors.Is(err, repositories.ErrDuplicateRequest) {
		return uuid.Nil, repositories.ErrDuplicateRequest
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to send friend request: %w", err)
	}

	publishEvent(ctx, s.feed, s.logger, feed.RequestsChannel(receiverID), feed.TableRequests, feed.OpInsert, request)
	return request.ID, nil
}

// Accept flips the request to accepted and creates both friendship
// edges atomically with the status write. The actor check runs before
// the state check.
func (s *FriendService) Accept(ctx context.Context, requestID, actingUser uuid.UUID) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.ReceiverID != actingUser {
		return ErrForbidden
	}

	updated, err := s.requests.Accept(ctx, requestID)
	if errors.Is(err, repositories.ErrStaleTransition) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("failed to accept friend request: %w", err)
	}

	publishEvent(ctx, s.feed, s.logger, feed.RequestsChannel(updated.ReceiverID), feed.TableRequests, feed.OpUpdate, updated)
	for _, edge := range []models.Friendship{
		{OwnerID: updated.SenderID, FriendID: updated.ReceiverID, CreatedAt: updated.UpdatedAt},
		{OwnerID: updated.ReceiverID, FriendID: updated.SenderID, CreatedAt: updated.UpdatedAt},
	} {
		publishEvent(ctx, s.feed, s.logger, feed.FriendshipsChannel(edge.OwnerID), feed.TableFriendships, feed.OpInsert, edge)
	}
	return nil
}

// Reject ends the request with no edges. Same actor rule as Accept.
func (s *FriendService) Reject(ctx context.Context, requestID, actingUser uuid.UUID) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.ReceiverID != actingUser {
		return ErrForbidden
	}

	updated, err := s.requests.Reject(ctx, requestID)
	if errors.Is(err, repositories.ErrStaleTransition) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("failed to reject friend request: %w", err)
	}

	publishEvent(ctx, s.feed, s.logger, feed.RequestsChannel(updated.ReceiverID), feed.TableRequests, feed.OpUpdate, updated)
	return nil
}

// PendingIncoming lists the requests awaiting action by receiverID,
// oldest first. Outgoing pendings are deliberately not surfaced; only
// the receiver acts on a request.
func (s *FriendService) PendingIncoming(ctx context.Context, receiverID uuid.UUID) ([]*models.FriendRequest, error) {
	return s.requests.ListPendingForReceiver(ctx, receiverID)
}

// Unfriend removes the caller's own edge only. The friend's mirror edge
// survives until they unfriend too; the resulting one-sided state is
// intentional.
func (s *FriendService) Unfriend(ctx context.Context, ownerID, friendID uuid.UUID) error {
	err := s.friendships.Delete(ctx, ownerID, friendID)
	if errors.Is(err, repositories.ErrNotFound) {
		return repositories.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to unfriend: %w", err)
	}

	edge := models.Friendship{OwnerID: ownerID, FriendID: friendID}
	publishEvent(ctx, s.feed, s.logger, feed.FriendshipsChannel(ownerID), feed.TableFriendships, feed.OpDelete, edge)
	return nil
}
