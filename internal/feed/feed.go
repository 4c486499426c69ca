package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Op is the kind of row change an event describes.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Table names carried in events. They mirror the relational tables so a
// subscriber can route on them without parsing the record.
const (
	TableAccounts    = "accounts"
	TableRequests    = "friend_requests"
	TableFriendships = "friendships"
	TableMessages    = "messages"
)

// Event is one row change. Record holds the full row as JSON; delivery
// is at-least-once with no ordering guarantee across channels, so
// consumers must treat events as hints and re-read or dedup as needed.
type Event struct {
	Table  string          `json:"table"`
	Op     Op              `json:"op"`
	Record json.RawMessage `json:"record"`
}

// NewEvent marshals record into an Event for table/op.
func NewEvent(table string, op Op, record any) (Event, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s event: %w", table, err)
	}
	return Event{Table: table, Op: op, Record: raw}, nil
}

// Subscription is a live event stream. Events() is closed after Close
// returns; Close is safe to call more than once and from any goroutine.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Feed is the publish side and subscribe side of the change stream.
// Channel names encode the filter predicate, so subscribing to a channel
// is subscribing to exactly the rows that match it.
type Feed interface {
	Publish(ctx context.Context, channel string, event Event) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	PSubscribe(ctx context.Context, patterns ...string) (Subscription, error)
}

// AccountsPattern matches every per-account presence/profile channel.
const AccountsPattern = "feed:accounts:*"

// MessagesChannel names the conversation stream for a pair. The ids are
// ordered so both participants derive the same channel.
func MessagesChannel(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return "feed:messages:" + lo + ":" + hi
}

// RequestsChannel carries friend request changes addressed to receiver.
func RequestsChannel(receiver uuid.UUID) string {
	return "feed:requests:" + receiver.String()
}

// FriendshipsChannel carries edge changes owned by owner.
func FriendshipsChannel(owner uuid.UUID) string {
	return "feed:friendships:" + owner.String()
}

// AccountChannel carries presence and profile changes for one account.
func AccountChannel(account uuid.UUID) string {
	return "feed:accounts:" + account.String()
}
