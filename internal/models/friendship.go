package models

import (
	"time"

	"github.com/google/uuid"
)

// Friendship is a directed edge. Accepting a request inserts both
// directions in one transaction, so an edge's mirror always exists
// unless one side has unfriended.
type Friendship struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	FriendID  uuid.UUID `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}
