package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one direct message between two accounts. Read means the
// receiver has loaded the conversation since it arrived.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}
