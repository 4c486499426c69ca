package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/models"
)

const conversationUpdateBuffer = 16

// Conversation is a live view over one pair's messages. It reconciles
// the loaded history with events from the pair's feed channel, keeping
// exactly one copy of each message id however often the feed redelivers
// it. That also covers self-echo: a sent message is absent locally
// until its own insert event arrives, then present exactly once.
//
// Messages addressed to the viewer are marked read one by one as they
// arrive, so mail received while the conversation is open never waits
// for the next full load.
type Conversation struct {
	viewerID uuid.UUID
	otherID  uuid.UUID

	service *ConversationService
	sub     feed.Subscription

	// ctx outlives the caller's Open context and ends at Close; the
	// arrival mark-read writes run on it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	messages []*models.Message
	index    map[uuid.UUID]int

	updates chan *models.Message

	closeOnce sync.Once
	closeErr  error
}

func newConversation(service *ConversationService, viewerID, otherID uuid.UUID, sub feed.Subscription, initial []*models.Message) *Conversation {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conversation{
		viewerID: viewerID,
		otherID:  otherID,
		service:  service,
		sub:      sub,
		ctx:      ctx,
		cancel:   cancel,
		index:    make(map[uuid.UUID]int, len(initial)),
		updates:  make(chan *models.Message, conversationUpdateBuffer),
	}
	for _, message := range initial {
		c.index[message.ID] = len(c.messages)
		c.messages = append(c.messages, message)
	}
	return c
}

// Other is the account on the far side of this conversation.
func (c *Conversation) Other() uuid.UUID {
	return c.otherID
}

// Messages returns the reconciled view, ordered as loaded with live
// arrivals appended in delivery order.
func (c *Conversation) Messages() []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Updates streams each applied change. It is advisory; a slow consumer
// misses notifications but Messages() always has the full view. The
// channel closes after Close.
func (c *Conversation) Updates() <-chan *models.Message {
	return c.updates
}

// Close releases the feed subscription and ends the Updates stream. No
// events for this pair are delivered after it returns. Safe to call
// more than once.
func (c *Conversation) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.sub.Close()
	})
	return c.closeErr
}

func (c *Conversation) run() {
	defer close(c.updates)
	for event := range c.sub.Events() {
		if event.Table != feed.TableMessages {
			continue
		}
		var message models.Message
		if err := json.Unmarshal(event.Record, &message); err != nil {
			c.service.logger.Warn("dropping undecodable message event", "error", err)
			continue
		}
		if message.ReceiverID == c.viewerID && !message.Read {
			c.markArrivalRead(&message)
		}
		c.apply(&message)
	}
}

// markArrivalRead flips a just-arrived inbound message to read and
// publishes the update so the sender's open view learns its mail was
// seen. If the write fails the local copy stays unread and the next
// load picks it up.
func (c *Conversation) markArrivalRead(message *models.Message) {
	if _, err := c.service.messages.MarkRead(c.ctx, []uuid.UUID{message.ID}, c.viewerID); err != nil {
		c.service.logger.Warn("failed to mark arrived message read",
			"message_id", message.ID,
			"error", err)
		return
	}
	message.Read = true
	channel := feed.MessagesChannel(c.viewerID, c.otherID)
	publishEvent(c.ctx, c.service.feed, c.service.logger, channel, feed.TableMessages, feed.OpUpdate, message)
}

// apply reconciles one event: a known id is replaced in place (read
// flag flips, feed redelivery), an unknown id appends.
func (c *Conversation) apply(message *models.Message) {
	c.mu.Lock()
	if i, ok := c.index[message.ID]; ok {
		c.messages[i] = message
	} else {
		c.index[message.ID] = len(c.messages)
		c.messages = append(c.messages, message)
	}
	c.mu.Unlock()

	select {
	case c.updates <- message:
	default:
	}
}
