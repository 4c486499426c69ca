package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/models"
	"github.com/parley-chat/parley/internal/repositories"
)

// ContactService composes friendships, pending incoming requests, and
// presence into the list a client renders.
type ContactService struct {
	accounts    repositories.AccountRepository
	requests    repositories.FriendRequestRepository
	friendships repositories.FriendshipRepository
	feed        feed.Feed
	logger      *slog.Logger
}

func NewContactService(
	accounts repositories.AccountRepository,
	requests repositories.FriendRequestRepository,
	friendships repositories.FriendshipRepository,
	changeFeed feed.Feed,
	logger *slog.Logger,
) *ContactService {
	return &ContactService{
		accounts:    accounts,
		requests:    requests,
		friendships: friendships,
		feed:        changeFeed,
		logger:      logger,
	}
}

// Load recomputes the full contact list: friends sorted by email,
// pending incoming requests oldest first. A request whose sender
// account cannot be loaded is skipped rather than failing the list.
func (s *ContactService) Load(ctx context.Context, accountID uuid.UUID) (*models.ContactList, error) {
	edges, err := s.friendships.ListByOwner(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friendships: %w", err)
	}

	friendIDs := make([]uuid.UUID, 0, len(edges))
	for _, edge := range edges {
		friendIDs = append(friendIDs, edge.FriendID)
	}
	friends, err := s.accounts.ListByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend accounts: %w", err)
	}

	pending, err := s.requests.ListPendingForReceiver(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	senderIDs := make([]uuid.UUID, 0, len(pending))
	for _, request := range pending {
		senderIDs = append(senderIDs, request.SenderID)
	}
	senders, err := s.accounts.ListByIDs(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load request senders: %w", err)
	}
	senderByID := make(map[uuid.UUID]models.ContactSummary, len(senders))
	for _, account := range senders {
		senderByID[account.ID] = summarize(account)
	}

	list := &models.ContactList{}
	for _, account := range friends {
		list.Friends = append(list.Friends, summarize(account))
	}
	for _, request := range pending {
		sender, ok := senderByID[request.SenderID]
		if !ok {
			continue
		}
		list.Requests = append(list.Requests, models.PendingRequest{
			RequestID: request.ID,
			Sender:    sender,
			CreatedAt: request.CreatedAt,
		})
	}
	return list, nil
}

func summarize(account *models.Account) models.ContactSummary {
	return models.ContactSummary{
		AccountID:   account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Status:      account.Status,
		LastSeenAt:  account.LastSeenAt,
	}
}

// Watch subscribes to everything that can change accountID's contact
// list, loads an initial snapshot, and recomputes from scratch whenever
// any subscribed event lands. Events are triggers only; their payloads
// are never merged into state, which makes redelivery and drops
// harmless.
func (s *ContactService) Watch(ctx context.Context, accountID uuid.UUID) (*ContactWatch, error) {
	changes, err := s.feed.Subscribe(ctx, feed.RequestsChannel(accountID), feed.FriendshipsChannel(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to contact changes: %w", err)
	}
	presence, err := s.feed.PSubscribe(ctx, feed.AccountsPattern)
	if err != nil {
		changes.Close()
		return nil, fmt.Errorf("failed to subscribe to presence changes: %w", err)
	}

	watch := &ContactWatch{
		service:   s,
		accountID: accountID,
		changes:   changes,
		presence:  presence,
		lists:     make(chan *models.ContactList, 1),
		dirty:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	initial, err := s.Load(ctx, accountID)
	if err != nil {
		changes.Close()
		presence.Close()
		return nil, err
	}
	watch.push(initial)

	go watch.signal(changes.Events())
	go watch.signal(presence.Events())
	go watch.run(ctx)
	return watch, nil
}

// ContactWatch is a live contact list. Lists() carries full snapshots;
// each one supersedes everything before it, so a consumer that only
// reads the latest is always current.
type ContactWatch struct {
	service   *ContactService
	accountID uuid.UUID

	changes  feed.Subscription
	presence feed.Subscription

	lists chan *models.ContactList
	dirty chan struct{}
	done  chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (w *ContactWatch) Lists() <-chan *models.ContactList {
	return w.lists
}

// Close releases both subscriptions and ends the Lists stream. Safe to
// call more than once.
func (w *ContactWatch) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.changes.Close()
		if err := w.presence.Close(); err != nil && w.closeErr == nil {
			w.closeErr = err
		}
	})
	return w.closeErr
}

// signal collapses any burst of events into one pending recompute.
func (w *ContactWatch) signal(events <-chan feed.Event) {
	for range events {
		select {
		case w.dirty <- struct{}{}:
		default:
		}
	}
}

func (w *ContactWatch) run(ctx context.Context) {
	defer close(w.lists)
	for {
		select {
		case <-w.done:
			return
		case <-w.dirty:
			list, err := w.service.Load(ctx, w.accountID)
			if err != nil {
				// The previous snapshot stands. Any later event,
				// including the next heartbeat, triggers another try.
				w.service.logger.Warn("contact list recompute failed", "account_id", w.accountID, "error", err)
				continue
			}
			w.push(list)
		}
	}
}

// push delivers latest-wins: if the consumer has not taken the previous
// snapshot yet, it is dropped in favor of this one.
func (w *ContactWatch) push(list *models.ContactList) {
	for {
		select {
		case w.lists <- list:
			return
		default:
			select {
			case <-w.lists:
			default:
			}
		}
	}
}
