package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-chat/parley/internal/models"
)

var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when an insert hits the accounts email
// uniqueness constraint.
var ErrEmailTaken = errors.New("email already registered")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (email, display_name, password_hash)
              VALUES ($1, $2, $3)
              RETURNING id, presence_status, last_seen_at, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, account.Email, account.DisplayName, account.PasswordHash).
		Scan(&account.ID, &account.Status, &account.LastSeenAt, &account.CreatedAt, &account.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT id, email, display_name, password_hash, presence_status, last_seen_at, created_at, updated_at
              FROM accounts WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)

	var account models.Account
	err := row.Scan(&account.ID, &account.Email, &account.DisplayName, &account.PasswordHash, &account.Status, &account.LastSeenAt, &account.CreatedAt, &account.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetByEmail matches exactly; lookup is case-sensitive on purpose.
func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT id, email, display_name, password_hash, presence_status, last_seen_at, created_at, updated_at
              FROM accounts WHERE email = $1`

	row := r.pool.QueryRow(ctx, query, email)

	var account models.Account
	err := row.Scan(&account.ID, &account.Email, &account.DisplayName, &account.PasswordHash, &account.Status, &account.LastSeenAt, &account.CreatedAt, &account.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// ListByIDs returns the accounts for ids, ordered by email. Missing ids
// are skipped rather than reported.
func (r *PostgresAccountRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, email, display_name, password_hash, presence_status, last_seen_at, created_at, updated_at
              FROM accounts
              WHERE id = ANY($1)
              ORDER BY email ASC`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var account models.Account
		err := rows.Scan(&account.ID, &account.Email, &account.DisplayName, &account.PasswordHash, &account.Status, &account.LastSeenAt, &account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

func (r *PostgresAccountRepository) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	query := `UPDATE accounts SET display_name = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, displayName, id)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresAccountRepository) SetPresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	query := `UPDATE accounts SET presence_status = $1, last_seen_at = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, status, lastSeen, id)
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkStaleOffline flips every account still marked online whose last
// heartbeat predates cutoff, and returns the presence it wrote so the
// caller can publish the changes.
func (r *PostgresAccountRepository) MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]models.Presence, error) {
	query := `UPDATE accounts
              SET presence_status = 'offline', updated_at = NOW()
              WHERE presence_status = 'online' AND last_seen_at < $1
              RETURNING id, last_seen_at`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to mark stale accounts offline: %w", err)
	}
	defer rows.Close()

	var reaped []models.Presence
	for rows.Next() {
		presence := models.Presence{Status: models.StatusOffline}
		if err := rows.Scan(&presence.AccountID, &presence.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan reaped presence: %w", err)
		}
		reaped = append(reaped, presence)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale accounts: %w", err)
	}

	return reaped, nil
}
