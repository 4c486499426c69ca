package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/models"
)

type MessageStore struct {
	mu       sync.RWMutex
	messages []*models.Message
	byID     map[uuid.UUID]*models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byID: make(map[uuid.UUID]*models.Message)}
}

func (s *MessageStore) Create(ctx context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	message.ID = uuid.New()
	message.Read = false
	message.CreatedAt = time.Now()

	stored := *message
	s.messages = append(s.messages, &stored)
	s.byID[message.ID] = &stored
	return nil
}

func (s *MessageStore) ListConversation(ctx context.Context, a, b uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conversation []*models.Message
	for _, message := range s.messages {
		if (message.SenderID == a && message.ReceiverID == b) ||
			(message.SenderID == b && message.ReceiverID == a) {
			clone := *message
			conversation = append(conversation, &clone)
		}
	}
	// Stable keeps insertion order for equal timestamps, matching the
	// tie-break the ordered sequence promises.
	sort.SliceStable(conversation, func(i, j int) bool {
		return conversation[i].CreatedAt.Before(conversation[j].CreatedAt)
	})
	return conversation, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, ids []uuid.UUID, receiverID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range ids {
		message, ok := s.byID[id]
		if !ok || message.ReceiverID != receiverID || message.Read {
			continue
		}
		message.Read = true
		count++
	}
	return count, nil
}
