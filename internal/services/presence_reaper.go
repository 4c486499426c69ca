package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/parley-chat/parley/internal/feed"
	"github.com/parley-chat/parley/internal/repositories"
)

const (
	// DefaultMaxStaleness is three missed heartbeats.
	DefaultMaxStaleness = 90 * time.Second

	DefaultSweepInterval = 30 * time.Second
)

// PresenceReaper is the scheduled collaborator that cleans up after
// sessions that died without their offline write. It runs once per
// process, not per session.
type PresenceReaper struct {
	accounts      repositories.AccountRepository
	feed          feed.Feed
	logger        *slog.Logger
	maxStaleness  time.Duration
	sweepInterval time.Duration
}

func NewPresenceReaper(accounts repositories.AccountRepository, changeFeed feed.Feed, logger *slog.Logger, maxStaleness, sweepInterval time.Duration) *PresenceReaper {
	if maxStaleness <= 0 {
		maxStaleness = DefaultMaxStaleness
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &PresenceReaper{
		accounts:      accounts,
		feed:          changeFeed,
		logger:        logger,
		maxStaleness:  maxStaleness,
		sweepInterval: sweepInterval,
	}
}

func (r *PresenceReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep flips accounts whose last heartbeat is older than the staleness
// bound and publishes each change. A failed sweep is retried on the
// next tick.
func (r *PresenceReaper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.maxStaleness)
	reaped, err := r.accounts.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		r.logger.Warn("presence sweep failed", "error", err)
		return
	}
	if len(reaped) == 0 {
		return
	}

	for _, presence := range reaped {
		publishEvent(ctx, r.feed, r.logger, feed.AccountChannel(presence.AccountID), feed.TableAccounts, feed.OpUpdate, presence)
	}
	r.logger.Info("marked stale accounts offline", "count", len(reaped))
}
