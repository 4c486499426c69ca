package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Account, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error
	SetPresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error
	MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]models.Presence, error)
}

type FriendRequestRepository interface {
	Create(ctx context.Context, request *models.FriendRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	Accept(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	Reject(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	ListPendingForReceiver(ctx context.Context, receiverID uuid.UUID) ([]*models.FriendRequest, error)
}

type FriendshipRepository interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Friendship, error)
	Exists(ctx context.Context, ownerID, friendID uuid.UUID) (bool, error)
	Delete(ctx context.Context, ownerID, friendID uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListConversation(ctx context.Context, a, b uuid.UUID) ([]*models.Message, error)
	MarkRead(ctx context.Context, ids []uuid.UUID, receiverID uuid.UUID) (int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}
