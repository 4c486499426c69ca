package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the root identity. Email lookup is exact-match and
// case-sensitive. Presence fields are written by the presence tracker
// and are advisory display state only.
type Account struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"display_name"`
	PasswordHash string         `json:"-"`
	Status       PresenceStatus `json:"status"`
	LastSeenAt   time.Time      `json:"last_seen_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
