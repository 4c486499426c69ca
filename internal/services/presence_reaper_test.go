package services

import (
	"context"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPresenceReaper_Sweep tests that only stale-online accounts are
// flipped and announced
func TestPresenceReaper_Sweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := createAccount(t, env, "stale")
	fresh := createAccount(t, env, "fresh")
	offline := createAccount(t, env, "offline")

	// stale stopped beating long ago, fresh just beat, offline never
	// came online
	require.NoError(t, env.accounts.SetPresence(ctx, stale.ID, models.StatusOnline, time.Now().Add(-10*time.Minute)))
	require.NoError(t, env.accounts.SetPresence(ctx, fresh.ID, models.StatusOnline, time.Now()))

	sub, err := env.feed.PSubscribe(ctx, feed.AccountsPattern)
	require.NoError(t, err)
	defer sub.Close()

	reaper := NewPresenceReaper(env.accounts, env.feed, env.logger, 90*time.Second, time.Minute)

	// ACT
	reaper.Sweep(ctx)

	// ASSERT: Only the stale account flipped
	staleAfter, err := env.accounts.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, staleAfter.Status)

	freshAfter, err := env.accounts.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, freshAfter.Status)

	offlineAfter, err := env.accounts.GetByID(ctx, offline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, offlineAfter.Status)

	// Exactly one change event, for the stale account
	select {
	case event := <-sub.Events():
		assert.Equal(t, feed.TableAccounts, event.Table)
		assert.Contains(t, string(event.Record), stale.ID.String())
	default:
		t.Fatal("expected a presence event for the reaped account")
	}
	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected second event: %s", event.Record)
	default:
	}

	// A second sweep finds nothing to do
	reaper.Sweep(ctx)
	select {
	case <-sub.Events():
		t.Fatal("an idle sweep must not publish")
	default:
	}
}

// TestPresenceReaper_Run tests the loop stops on cancellation
func TestPresenceReaper_Run(t *testing.T) {
	env := newTestEnv(t)

	reaper := NewPresenceReaper(env.accounts, env.feed, env.logger, 90*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reaper.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
