package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-chat/parley/internal/models"
)

type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, message *models.Message) error {
	query := `INSERT INTO messages (sender_id, receiver_id, content)
              VALUES ($1, $2, $3)
              RETURNING id, read, created_at`

	err := r.pool.QueryRow(ctx, query, message.SenderID, message.ReceiverID, message.Content).
		Scan(&message.ID, &message.Read, &message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListConversation returns every message between a and b, regardless of
// direction, ordered by creation time with id as the tie-breaker.
func (r *PostgresMessageRepository) ListConversation(ctx context.Context, a, b uuid.UUID) ([]*models.Message, error) {
	query := `SELECT id, sender_id, receiver_id, content, read, created_at
              FROM messages
              WHERE (sender_id = $1 AND receiver_id = $2)
                 OR (sender_id = $2 AND receiver_id = $1)
              ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var message models.Message
		err := rows.Scan(
			&message.ID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Content,
			&message.Read,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// MarkRead flips the given messages to read in one write. The receiver
// filter keeps a caller from marking the other side's inbound mail; the
// read filter makes the call idempotent. Returns how many rows changed.
func (r *PostgresMessageRepository) MarkRead(ctx context.Context, ids []uuid.UUID, receiverID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `UPDATE messages
              SET read = TRUE
              WHERE id = ANY($1) AND receiver_id = $2 AND NOT read`

	result, err := r.pool.Exec(ctx, query, ids, receiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.RowsAffected(), nil
}
