package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-chat/parley/internal/models"
)

// Edges are only ever written by PostgresFriendRequestRepository.Accept;
// this repository reads and removes them.
type PostgresFriendshipRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresFriendshipRepository(pool *pgxpool.Pool) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{pool: pool}
}

func (r *PostgresFriendshipRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Friendship, error) {
	query := `SELECT owner_id, friend_id, created_at
              FROM friendships
              WHERE owner_id = $1
              ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query friendships: %w", err)
	}
	defer rows.Close()

	var friendships []*models.Friendship
	for rows.Next() {
		var friendship models.Friendship
		if err := rows.Scan(&friendship.OwnerID, &friendship.FriendID, &friendship.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friendship: %w", err)
		}
		friendships = append(friendships, &friendship)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friendships: %w", err)
	}

	return friendships, nil
}

func (r *PostgresFriendshipRepository) Exists(ctx context.Context, ownerID, friendID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM friendships WHERE owner_id = $1 AND friend_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, ownerID, friendID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return exists, nil
}

// Delete removes only the owner's directed edge. The mirror edge stays
// until its owner removes it too.
func (r *PostgresFriendshipRepository) Delete(ctx context.Context, ownerID, friendID uuid.UUID) error {
	query := `DELETE FROM friendships WHERE owner_id = $1 AND friend_id = $2`

	result, err := r.pool.Exec(ctx, query, ownerID, friendID)
	if err != nil {
		return fmt.Errorf("failed to delete friendship: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
