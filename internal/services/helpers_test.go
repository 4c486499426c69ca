package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/models"
	"github.com/parley-chat/parley/internal/repositories/memory"
	"github.com/stretchr/testify/require"
)

// testEnv wires every service over the in-memory stores and feed, the
// same graph main assembles over Postgres and Redis.
type testEnv struct {
	accounts    *memory.AccountStore
	requests    *memory.FriendRequestStore
	friendships *memory.FriendshipStore
	messages    *memory.MessageStore
	feed        *feed.MemoryFeed
	logger      *slog.Logger

	directory     *DirectoryService
	friends       *FriendService
	conversations *ConversationService
	contacts      *ContactService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		accounts:    memory.NewAccountStore(),
		friendships: memory.NewFriendshipStore(),
		messages:    memory.NewMessageStore(),
		feed:        feed.NewMemoryFeed(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	env.requests = memory.NewFriendRequestStore(env.friendships)
	env.directory = NewDirectoryService(env.accounts)
	env.friends = NewFriendService(env.directory, env.requests, env.friendships, env.feed, env.logger)
	env.conversations = NewConversationService(env.messages, env.friendships, env.feed, env.logger, false)
	env.contacts = NewContactService(env.accounts, env.requests, env.friendships, env.feed, env.logger)
	return env
}

// createAccount registers an account the way the auth collaborator
// would, with a unique email derived from name.
func createAccount(t *testing.T, env *testEnv, name string) *models.Account {
	t.Helper()

	account := &models.Account{
		Email:        name + "-" + uuid.New().String() + "@example.com",
		DisplayName:  name,
		PasswordHash: "test-hash",
	}
	require.NoError(t, env.accounts.Create(context.Background(), account))
	return account
}

// befriend runs the full request lifecycle so the two accounts end up
// with both friendship edges.
func befriend(t *testing.T, env *testEnv, sender, receiver *models.Account) {
	t.Helper()

	ctx := context.Background()
	requestID, err := env.friends.Send(ctx, sender.ID, receiver.Email)
	require.NoError(t, err)
	require.NoError(t, env.friends.Accept(ctx, requestID, receiver.ID))
}

// receiveMessage waits for the next message on a conversation's Updates
// stream.
func receiveMessage(t *testing.T, conversation *Conversation) *models.Message {
	t.Helper()

	select {
	case message, ok := <-conversation.Updates():
		require.True(t, ok, "Updates channel closed early")
		return message
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message update")
		return nil
	}
}

// receiveList waits for the next contact list snapshot.
func receiveList(t *testing.T, watch *ContactWatch) *models.ContactList {
	t.Helper()

	select {
	case list, ok := <-watch.Lists():
		require.True(t, ok, "Lists channel closed early")
		return list
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for contact list")
		return nil
	}
}
