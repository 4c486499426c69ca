package services

import (
	"context"
	"log/slog"

	"github.com/parley-chat/parley/internal/feed"
)

// publishEvent pushes a row-change event after its write has committed.
// The feed is advisory: a failed publish is logged, never surfaced, so a
// flaky broker cannot fail a durable write. Consumers reconcile by
// reloading, not by trusting every event arrived.
func publishEvent(ctx context.Context, f feed.Feed, logger *slog.Logger, channel, table string, op feed.Op, record any) {
	event, err := feed.NewEvent(table, op, record)
	if err == nil {
		err = f.Publish(ctx, channel, event)
	}
	if err != nil {
		logger.Warn("failed to publish change event", "channel", channel, "error", err)
	}
}
