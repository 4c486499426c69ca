package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-chat/parley/internal/models"
)

// ErrDuplicateRequest is returned when a request for the same ordered
// (sender, receiver) pair already exists in any status.
var ErrDuplicateRequest = errors.New("friend request already exists")

// ErrStaleTransition is returned when accept/reject finds the request
// no longer pending. pending -> accepted and pending -> rejected are
// the only legal transitions.
var ErrStaleTransition = errors.New("request is not pending")

type PostgresFriendRequestRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresFriendRequestRepository(pool *pgxpool.Pool) *PostgresFriendRequestRepository {
	return &PostgresFriendRequestRepository{pool: pool}
}

func (r *PostgresFriendRequestRepository) Create(ctx context.Context, request *models.FriendRequest) error {
	query := `INSERT INTO friend_requests (sender_id, receiver_id)
              VALUES ($1, $2)
              RETURNING id, status, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, request.SenderID, request.ReceiverID).
		Scan(&request.ID, &request.Status, &request.CreatedAt, &request.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateRequest
	}
	if err != nil {
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

func (r *PostgresFriendRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	query := `SELECT id, sender_id, receiver_id, status, created_at, updated_at
              FROM friend_requests WHERE id = $1`

	var request models.FriendRequest
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&request.ID,
		&request.SenderID,
		&request.ReceiverID,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friend request: %w", err)
	}
	return &request, nil
}

// Accept flips a pending request to accepted and inserts both friendship
// edges in the same transaction. The edge insert is idempotent so a
// pre-existing edge does not fail the accept.
func (r *PostgresFriendRequestRepository) Accept(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE friend_requests
              SET status = 'accepted', updated_at = NOW()
              WHERE id = $1 AND status = 'pending'
              RETURNING id, sender_id, receiver_id, status, created_at, updated_at`

	var request models.FriendRequest
	err = tx.QueryRow(ctx, query, id).Scan(
		&request.ID,
		&request.SenderID,
		&request.ReceiverID,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.transitionMiss(ctx, tx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to accept friend request: %w", err)
	}

	edges := `INSERT INTO friendships (owner_id, friend_id)
              VALUES ($1, $2), ($2, $1)
              ON CONFLICT DO NOTHING`

	if _, err := tx.Exec(ctx, edges, request.SenderID, request.ReceiverID); err != nil {
		return nil, fmt.Errorf("failed to create friendship edges: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit accept: %w", err)
	}
	return &request, nil
}

func (r *PostgresFriendRequestRepository) Reject(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE friend_requests
              SET status = 'rejected', updated_at = NOW()
              WHERE id = $1 AND status = 'pending'
              RETURNING id, sender_id, receiver_id, status, created_at, updated_at`

	var request models.FriendRequest
	err = tx.QueryRow(ctx, query, id).Scan(
		&request.ID,
		&request.SenderID,
		&request.ReceiverID,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.transitionMiss(ctx, tx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reject friend request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reject: %w", err)
	}
	return &request, nil
}

// transitionMiss distinguishes a missing request from one that exists
// but already left pending.
func (r *PostgresFriendRequestRepository) transitionMiss(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM friend_requests WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check friend request: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleTransition
}

func (r *PostgresFriendRequestRepository) ListPendingForReceiver(ctx context.Context, receiverID uuid.UUID) ([]*models.FriendRequest, error) {
	query := `SELECT id, sender_id, receiver_id, status, created_at, updated_at
              FROM friend_requests
              WHERE receiver_id = $1 AND status = 'pending'
              ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.FriendRequest
	for rows.Next() {
		var request models.FriendRequest
		err := rows.Scan(
			&request.ID,
			&request.SenderID,
			&request.ReceiverID,
			&request.Status,
			&request.CreatedAt,
			&request.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		requests = append(requests, &request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend requests: %w", err)
	}

	return requests, nil
}
