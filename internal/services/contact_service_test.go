package services

import (
	"context"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestContactService_Load tests composing friendships, pending incoming
// requests, and presence into one list
func TestContactService_Load(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")
	bob := createAccount(t, env, "bob")
	carol := createAccount(t, env, "carol")

	befriend(t, env, alice, bob)

	// Carol's request to Alice is still pending
	_, err := env.friends.Send(ctx, carol.ID, alice.Email)
	require.NoError(t, err)

	// Bob is online
	require.NoError(t, env.accounts.SetPresence(ctx, bob.ID, models.StatusOnline, time.Now()))

	// ACT
	list, err := env.contacts.Load(ctx, alice.ID)

	// ASSERT: One friend with live presence, one pending request with
	// its sender resolved
	require.NoError(t, err)
	require.Len(t, list.Friends, 1)
	assert.Equal(t, bob.ID, list.Friends[0].AccountID)
	assert.Equal(t, bob.Email, list.Friends[0].Email)
	assert.Equal(t, models.StatusOnline, list.Friends[0].Status)

	require.Len(t, list.Requests, 1)
	assert.Equal(t, carol.ID, list.Requests[0].Sender.AccountID)
	assert.Equal(t, "carol", list.Requests[0].Sender.DisplayName)
}

// TestContactService_Load_Empty tests that a fresh account gets an
// empty list, not an error
func TestContactService_Load_Empty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")

	list, err := env.contacts.Load(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, list.Friends)
	assert.Empty(t, list.Requests)
}

// TestContactService_Load_SortsFriendsByEmail tests the list order
func TestContactService_Load_SortsFriendsByEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := createAccount(t, env, "owner")
	zed := createAccount(t, env, "zed")
	amy := createAccount(t, env, "amy")

	befriend(t, env, zed, owner)
	befriend(t, env, amy, owner)

	list, err := env.contacts.Load(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list.Friends, 2)
	assert.Equal(t, amy.ID, list.Friends[0].AccountID, "amy sorts before zed")
	assert.Equal(t, zed.ID, list.Friends[1].AccountID)
}

// TestContactService_Watch tests the level-triggered recompute: each
// relevant event produces a fresh full snapshot
func TestContactService_Watch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")
	bob := createAccount(t, env, "bob")

	watch, err := env.contacts.Watch(ctx, alice.ID)
	require.NoError(t, err)
	defer watch.Close()

	// The initial snapshot is empty
	initial := receiveList(t, watch)
	assert.Empty(t, initial.Friends)
	assert.Empty(t, initial.Requests)

	// An incoming request shows up after its event
	_, err = env.friends.Send(ctx, bob.ID, alice.Email)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case list := <-watch.Lists():
			return len(list.Requests) == 1 && list.Requests[0].Sender.AccountID == bob.ID
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "Request event should trigger a recompute")
}

// TestContactService_Watch_FriendshipAndPresence tests that accepting a
// request and a later heartbeat both reach a watching list
func TestContactService_Watch_FriendshipAndPresence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")
	bob := createAccount(t, env, "bob")

	requestID, err := env.friends.Send(ctx, alice.ID, bob.Email)
	require.NoError(t, err)

	watch, err := env.contacts.Watch(ctx, alice.ID)
	require.NoError(t, err)
	defer watch.Close()
	receiveList(t, watch)

	// Bob accepts; Alice's friendship channel fires and the recompute
	// shows Bob as a friend
	require.NoError(t, env.friends.Accept(ctx, requestID, bob.ID))

	require.Eventually(t, func() bool {
		select {
		case list := <-watch.Lists():
			return len(list.Friends) == 1 && list.Friends[0].AccountID == bob.ID
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "Friendship event should trigger a recompute")

	// A presence beat from Bob refreshes the rendered status
	tracker := NewPresenceTracker(env.accounts, env.feed, env.logger, time.Minute)
	tracker.beat(ctx, bob.ID)

	require.Eventually(t, func() bool {
		select {
		case list := <-watch.Lists():
			return len(list.Friends) == 1 && list.Friends[0].Status == models.StatusOnline
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "Presence event should trigger a recompute")
}

// TestContactService_Watch_Close tests teardown: the snapshot stream
// ends and later events are not delivered
func TestContactService_Watch_Close(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := createAccount(t, env, "alice")
	bob := createAccount(t, env, "bob")

	watch, err := env.contacts.Watch(ctx, alice.ID)
	require.NoError(t, err)
	receiveList(t, watch)

	require.NoError(t, watch.Close())
	require.NoError(t, watch.Close(), "Second close should be a no-op")

	_, err = env.friends.Send(ctx, bob.ID, alice.Email)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, open := <-watch.Lists()
		return !open
	}, 2*time.Second, 10*time.Millisecond, "Lists should close after Close")
}
