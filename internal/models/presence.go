package models

import (
	"time"

	"github.com/google/uuid"
)

// Presence is the change-feed record published whenever an account's
// presence columns change.
type Presence struct {
	AccountID uuid.UUID      `json:"account_id"`
	Status    PresenceStatus `json:"status"`
	LastSeen  time.Time      `json:"last_seen"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
