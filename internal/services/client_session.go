package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/parley-chat/parley/internal/models"
)

// ClientSession owns the live machinery for one signed-in account: the
// presence heartbeat, the contact list watch, and at most one open
// conversation. Everything it starts is released by Close, on every
// path; a leaked subscription is a correctness bug here, not a cosmetic
// one, because it keeps delivering events for a scope that ended.
type ClientSession struct {
	accountID     uuid.UUID
	conversations *ConversationService
	logger        *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
	watch  *ContactWatch

	mu      sync.Mutex
	current *Conversation

	closeOnce sync.Once
	closeErr  error
}

// StartClientSession brings the account online and starts its contact
// watch. On any startup failure everything already started is torn back
// down before the error returns.
func StartClientSession(
	ctx context.Context,
	accountID uuid.UUID,
	presence *PresenceTracker,
	contacts *ContactService,
	conversations *ConversationService,
	logger *slog.Logger,
) (*ClientSession, error) {
	ctx, cancel := context.WithCancel(ctx)

	watch, err := contacts.Watch(ctx, accountID)
	if err != nil {
		cancel()
		return nil, err
	}

	group, ctx := errgroup.WithContext(ctx)
	session := &ClientSession{
		accountID:     accountID,
		conversations: conversations,
		logger:        logger.With("account_id", accountID),
		cancel:        cancel,
		group:         group,
		watch:         watch,
	}

	group.Go(func() error {
		return presence.Run(ctx, accountID)
	})

	return session, nil
}

func (s *ClientSession) AccountID() uuid.UUID {
	return s.accountID
}

// Contacts streams contact list snapshots, latest-wins. The channel
// closes after Close.
func (s *ClientSession) Contacts() <-chan *models.ContactList {
	return s.watch.Lists()
}

// OpenConversation switches the active conversation to otherID. The
// previous conversation's subscription is released before the new one
// is established, so events from successively selected pairs never
// interleave.
func (s *ClientSession) OpenConversation(ctx context.Context, otherID uuid.UUID) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if err := s.current.Close(); err != nil {
			s.logger.Warn("failed to close previous conversation", "error", err)
		}
		s.current = nil
	}

	conversation, err := s.conversations.Open(ctx, s.accountID, otherID)
	if err != nil {
		return nil, err
	}
	s.current = conversation
	return conversation, nil
}

// Send delivers a message from this session's account.
func (s *ClientSession) Send(ctx context.Context, receiverID uuid.UUID, content string) (uuid.UUID, error) {
	return s.conversations.Send(ctx, s.accountID, receiverID, content)
}

// Close tears the session down: open conversation first, then the
// contact watch, then the heartbeat. It blocks until the tracker has
// attempted its offline write, so callers observe offline after Close
// returns whenever the store is reachable.
func (s *ClientSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.current != nil {
			if err := s.current.Close(); err != nil {
				s.logger.Warn("failed to close conversation", "error", err)
			}
			s.current = nil
		}
		s.mu.Unlock()

		if err := s.watch.Close(); err != nil {
			s.logger.Warn("failed to close contact watch", "error", err)
		}

		s.cancel()
		if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
	})
	return s.closeErr
}
