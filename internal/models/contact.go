package models

import (
	"time"

	"github.com/google/uuid"
)

// ContactSummary is the read-model row for one account as it appears in
// another account's contact list.
type ContactSummary struct {
	AccountID   uuid.UUID      `json:"account_id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Status      PresenceStatus `json:"status"`
	LastSeenAt  time.Time      `json:"last_seen_at"`
}

// PendingRequest pairs an incoming friend request with its sender's
// summary so the list can render without further lookups.
type PendingRequest struct {
	RequestID uuid.UUID      `json:"request_id"`
	Sender    ContactSummary `json:"sender"`
	CreatedAt time.Time      `json:"created_at"`
}

// ContactList is a full recomputed snapshot, never a delta. Friends are
// sorted by email, requests by creation time.
type ContactList struct {
	Friends  []ContactSummary `json:"friends"`
	Requests []PendingRequest `json:"requests"`
}
