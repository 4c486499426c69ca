package services

import (
	"context"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClientSession_EndToEnd walks the whole product flow: two live
// sessions, a friend request, an accept, a first message, and the
// read/presence state both sides observe
func TestClientSession_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")
	bob := createAccount(t, env, "bob")

	tracker := NewPresenceTracker(env.accounts, env.feed, env.logger, 20*time.Millisecond)

	bobSession, err := StartClientSession(ctx, bob.ID, tracker, env.contacts, env.conversations, env.logger)
	require.NoError(t, err)
	defer bobSession.Close()

	aliceSession, err := StartClientSession(ctx, alice.ID, tracker, env.contacts, env.conversations, env.logger)
	require.NoError(t, err)
	defer aliceSession.Close()

	// Both heartbeats land
	require.Eventually(t, func() bool {
		a, errA := env.accounts.GetByID(ctx, alice.ID)
		b, errB := env.accounts.GetByID(ctx, bob.ID)
		return errA == nil && errB == nil &&
			a.Status == models.StatusOnline && b.Status == models.StatusOnline
	}, 2*time.Second, 5*time.Millisecond, "Both sessions should be online")

	// Alice requests, Bob accepts
	requestID, err := env.friends.Send(ctx, alice.ID, bob.Email)
	require.NoError(t, err)
	require.NoError(t, env.friends.Accept(ctx, requestID, bob.ID))

	// Alice's watched contact list shows Bob as an online friend
	require.Eventually(t, func() bool {
		select {
		case list := <-aliceSession.Contacts():
			return len(list.Friends) == 1 &&
				list.Friends[0].AccountID == bob.ID &&
				list.Friends[0].Status == models.StatusOnline
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "Alice should see Bob online among her friends")

	// Alice opens the conversation and sends the first message
	aliceConv, err := aliceSession.OpenConversation(ctx, bob.ID)
	require.NoError(t, err)

	messageID, err := aliceSession.Send(ctx, bob.ID, "hi")
	require.NoError(t, err)

	// Bob opens his side: the backlog is there and already read
	bobConv, err := bobSession.OpenConversation(ctx, alice.ID)
	require.NoError(t, err)

	bobMessages := bobConv.Messages()
	require.Len(t, bobMessages, 1)
	assert.Equal(t, messageID, bobMessages[0].ID)
	assert.Equal(t, "hi", bobMessages[0].Content)
	assert.True(t, bobMessages[0].Read, "Loading marks inbound mail read")

	// Alice's view converges on her own echoed message with the read
	// flag Bob's load produced
	require.Eventually(t, func() bool {
		for _, message := range aliceConv.Messages() {
			if message.ID == messageID && message.Read {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "Alice should see her message delivered and read")

	// Bob signs off; his offline write reaches Alice's contact list
	require.NoError(t, bobSession.Close())

	account, err := env.accounts.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, account.Status, "Close should write offline before returning")

	require.Eventually(t, func() bool {
		select {
		case list := <-aliceSession.Contacts():
			return len(list.Friends) == 1 && list.Friends[0].Status == models.StatusOffline
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "Alice should see Bob go offline")
}

// TestClientSession_SwitchConversation tests that selecting a new
// conversation releases the old pair's stream before the new one opens
func TestClientSession_SwitchConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")
	bob := createAccount(t, env, "bob")
	carol := createAccount(t, env, "carol")

	tracker := NewPresenceTracker(env.accounts, env.feed, env.logger, time.Minute)
	session, err := StartClientSession(ctx, alice.ID, tracker, env.contacts, env.conversations, env.logger)
	require.NoError(t, err)
	defer session.Close()

	bobConv, err := session.OpenConversation(ctx, bob.ID)
	require.NoError(t, err)

	// ACT: Switch to Carol
	carolConv, err := session.OpenConversation(ctx, carol.ID)
	require.NoError(t, err)

	// ASSERT: The old handle is closed
	select {
	case _, open := <-bobConv.Updates():
		assert.False(t, open, "Old conversation's updates should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("old conversation did not close")
	}

	// Mail for the old pair neither reaches the old view nor is marked
	// read by it
	oldPairMessage, err := env.conversations.Send(ctx, bob.ID, alice.ID, "anyone home")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, bobConv.Messages(), "Closed view must not keep reconciling")
	assert.Empty(t, carolConv.Messages(), "The other pair's mail must not cross over")

	stored, err := env.messages.ListConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, oldPairMessage, stored[0].ID)
	assert.False(t, stored[0].Read, "No open view means no arrival read")

	// The new pair's stream is live
	_, err = env.conversations.Send(ctx, carol.ID, alice.ID, "hello")
	require.NoError(t, err)

	received := receiveMessage(t, carolConv)
	assert.Equal(t, "hello", received.Content)
}

// TestClientSession_Close tests full teardown on every resource the
// session owns
func TestClientSession_Close(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")
	bob := createAccount(t, env, "bob")

	tracker := NewPresenceTracker(env.accounts, env.feed, env.logger, 20*time.Millisecond)
	session, err := StartClientSession(ctx, alice.ID, tracker, env.contacts, env.conversations, env.logger)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		account, err := env.accounts.GetByID(ctx, alice.ID)
		return err == nil && account.Status == models.StatusOnline
	}, 2*time.Second, 5*time.Millisecond)

	conversation, err := session.OpenConversation(ctx, bob.ID)
	require.NoError(t, err)

	// ACT
	require.NoError(t, session.Close())
	require.NoError(t, session.Close(), "Second close should be a no-op")

	// ASSERT: Offline written, conversation and contact streams ended
	account, err := env.accounts.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, account.Status)

	select {
	case _, open := <-conversation.Updates():
		assert.False(t, open, "Conversation should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("conversation did not close")
	}

	require.Eventually(t, func() bool {
		_, open := <-session.Contacts()
		return !open
	}, 2*time.Second, 10*time.Millisecond, "Contacts stream should close")
}
