package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/models"
	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"
const accountSessionsPrefix = "account:%s:sessions"

// RedisSessionRepository keys each session under session:{id} with a TTL
// matching its expiry, and indexes ids per account in a set so logout-all
// can find them.
type RedisSessionRepository struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisSessionRepository(client *redis.Client, logger *slog.Logger) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, logger: logger}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)

	key := fmt.Sprintf("%s%s", sessionPrefix, session.ID)
	err = r.client.Set(ctx, key, jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	accountKey := fmt.Sprintf(accountSessionsPrefix, session.AccountID)
	err = r.client.SAdd(ctx, accountKey, session.ID).Err()
	if err != nil {
		return fmt.Errorf("failed to add session to account sessions: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	key := fmt.Sprintf("%s%s", sessionPrefix, id)

	jsonData, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	err = json.Unmarshal([]byte(jsonData), &session)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// GetByAccountID lists the account's live sessions and prunes set
// entries whose session key has already expired.
func (r *RedisSessionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	accountKey := fmt.Sprintf(accountSessionsPrefix, accountID)
	sessionIDs, err := r.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get account sessions: %w", err)
	}

	var sessions []*models.Session
	var expiredIDs []interface{}

	for _, id := range sessionIDs {
		jsonData, err := r.client.Get(ctx, fmt.Sprintf("%s%s", sessionPrefix, id)).Result()
		if err == redis.Nil {
			expiredIDs = append(expiredIDs, id)
			continue
		}
		if err != nil {
			r.logger.Warn("failed to get session", "session_id", id, "error", err)
			continue
		}

		var session models.Session
		if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
			r.logger.Warn("failed to unmarshal session", "session_id", id, "error", err)
			continue
		}

		sessions = append(sessions, &session)
	}

	if len(expiredIDs) > 0 {
		err = r.client.SRem(ctx, accountKey, expiredIDs).Err()
		if err != nil {
			return nil, fmt.Errorf("failed to remove expired sessions: %w", err)
		}
	}
	return sessions, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s%s", sessionPrefix, id)

	session, err := r.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	accountKey := fmt.Sprintf(accountSessionsPrefix, session.AccountID)
	err = r.client.SRem(ctx, accountKey, id).Err()
	if err != nil {
		return fmt.Errorf("failed to remove session from account sessions: %w", err)
	}

	err = r.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (r *RedisSessionRepository) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	accountKey := fmt.Sprintf(accountSessionsPrefix, accountID)
	sessionIDs, err := r.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get account sessions: %w", err)
	}
	for _, id := range sessionIDs {
		if err := r.Delete(ctx, id); err != nil {
			r.logger.Warn("failed to delete session", "session_id", id, "error", err)
			continue
		}
	}
	return nil
}
