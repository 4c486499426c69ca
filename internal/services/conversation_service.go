package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/models"
	"github.com/parley-chat/parley/internal/repositories"
)

var (
	ErrEmptyContent = errors.New("message content is empty")
	ErrNotFriends   = errors.New("accounts are not friends")
)

// ConversationService loads, live-streams, and marks-read the message
// history between two accounts.
//
// requireFriendship gates Send on an existing edge from sender to
// receiver. The inherited default is off: any two resolvable accounts
// can message each other. Both policies are supported and tested.
type ConversationService struct {
	messages          repositories.MessageRepository
	friendships       repositories.FriendshipRepository
	feed              feed.Feed
	logger            *slog.Logger
	requireFriendship bool
}

func NewConversationService(
	messages repositories.MessageRepository,
	friendships repositories.FriendshipRepository,
	changeFeed feed.Feed,
	logger *slog.Logger,
	requireFriendship bool,
) *ConversationService {
	return &ConversationService{
		messages:          messages,
		friendships:       friendships,
		feed:              changeFeed,
		logger:            logger,
		requireFriendship: requireFriendship,
	}
}

// Send stores one message and publishes it to the pair's channel.
// Content that is blank after trimming fails with ErrEmptyContent;
// otherwise it is stored as given.
func (s *ConversationService) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (uuid.UUID, error) {
	if strings.TrimSpace(content) == "" {
		return uuid.Nil, ErrEmptyContent
	}
	if s.requireFriendship {
		ok, err := s.friendships.Exists(ctx, senderID, receiverID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to check friendship: %w", err)
		}
		if !ok {
			return uuid.Nil, ErrNotFriends
		}
	}

	message := &models.Message{SenderID: senderID, ReceiverID: receiverID, Content: content}
	if err := s.messages.Create(ctx, message); err != nil {
		return uuid.Nil, fmt.Errorf("failed to send message: %w", err)
	}

	publishEvent(ctx, s.feed, s.logger, feed.MessagesChannel(senderID, receiverID), feed.TableMessages, feed.OpInsert, message)
	return message.ID, nil
}

// Load returns the full history between viewer and other, ascending by
// creation time. Every returned message addressed to the viewer and
// still unread is flipped in one batched write before Load returns, and
// an update is published per flipped message so the sender's open view
// learns its mail was read. Only the viewer's own inbound mail is ever
// marked.
func (s *ConversationService) Load(ctx context.Context, viewerID, otherID uuid.UUID) ([]*models.Message, error) {
	messages, err := s.messages.ListConversation(ctx, viewerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var unread []uuid.UUID
	for _, message := range messages {
		if message.ReceiverID == viewerID && !message.Read {
			unread = append(unread, message.ID)
		}
	}
	if len(unread) == 0 {
		return messages, nil
	}

	if _, err := s.messages.MarkRead(ctx, unread, viewerID); err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	channel := feed.MessagesChannel(viewerID, otherID)
	for _, message := range messages {
		if message.ReceiverID == viewerID && !message.Read {
			message.Read = true
			publishEvent(ctx, s.feed, s.logger, channel, feed.TableMessages, feed.OpUpdate, message)
		}
	}
	return messages, nil
}

// Open subscribes to the pair's live stream and then loads history, in
// that order, so no message can commit between the two and go unseen.
// The returned handle owns the subscription; the caller must Close it.
func (s *ConversationService) Open(ctx context.Context, viewerID, otherID uuid.UUID) (*Conversation, error) {
	sub, err := s.feed.Subscribe(ctx, feed.MessagesChannel(viewerID, otherID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to conversation: %w", err)
	}

	messages, err := s.Load(ctx, viewerID, otherID)
	if err != nil {
		sub.Close()
		return nil, err
	}

	conversation := newConversation(s, viewerID, otherID, sub, messages)
	go conversation.run()
	return conversation, nil
}
