package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/models"
	"github.com/parley-chat/parley/internal/repositories"
)

const (
	// DefaultHeartbeatInterval is how often an active session refreshes
	// its online mark.
	DefaultHeartbeatInterval = 30 * time.Second

	// offlineWriteTimeout bounds the teardown write, which runs after
	// the session context is already canceled.
	offlineWriteTimeout = 5 * time.Second
)

// PresenceTracker keeps one account's presence columns fresh while its
// session lives. Heartbeats mark online; teardown makes a best-effort
// offline write. An abrupt process death skips that write and leaves
// the account online until the reaper sweeps it.
type PresenceTracker struct {
	accounts repositories.AccountRepository
	feed     feed.Feed
	logger   *slog.Logger
	interval time.Duration
}

func NewPresenceTracker(accounts repositories.AccountRepository, changeFeed feed.Feed, logger *slog.Logger, interval time.Duration) *PresenceTracker {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &PresenceTracker{
		accounts: accounts,
		feed:     changeFeed,
		logger:   logger,
		interval: interval,
	}
}

// Run beats immediately, then on every interval tick until ctx ends. A
// failed beat is logged and retried on the next tick, never fatal. On
// ctx cancellation it writes offline and returns ctx.Err().
func (t *PresenceTracker) Run(ctx context.Context, accountID uuid.UUID) error {
	t.beat(ctx, accountID)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.beat(ctx, accountID)
		case <-ctx.Done():
			t.setOffline(ctx, accountID)
			return ctx.Err()
		}
	}
}

func (t *PresenceTracker) beat(ctx context.Context, accountID uuid.UUID) {
	now := time.Now()
	if err := t.accounts.SetPresence(ctx, accountID, models.StatusOnline, now); err != nil {
		t.logger.Warn("presence heartbeat failed", "account_id", accountID, "error", err)
		return
	}
	presence := models.Presence{AccountID: accountID, Status: models.StatusOnline, LastSeen: now}
	publishEvent(ctx, t.feed, t.logger, feed.AccountChannel(accountID), feed.TableAccounts, feed.OpUpdate, presence)
}

// setOffline detaches from the canceled session context so the final
// write still has a deadline of its own.
func (t *PresenceTracker) setOffline(parent context.Context, accountID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), offlineWriteTimeout)
	defer cancel()

	now := time.Now()
	if err := t.accounts.SetPresence(ctx, accountID, models.StatusOffline, now); err != nil {
		t.logger.Warn("failed to mark account offline", "account_id", accountID, "error", err)
		return
	}
	presence := models.Presence{AccountID: accountID, Status: models.StatusOffline, LastSeen: now}
	publishEvent(ctx, t.feed, t.logger, feed.AccountChannel(accountID), feed.TableAccounts, feed.OpUpdate, presence)
}
