package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/repositories"
)

// DirectoryService resolves user-supplied emails to account identities.
// It is a leaf: lookup only, no writes.
type DirectoryService struct {
	accounts repositories.AccountRepository
}

func NewDirectoryService(accounts repositories.AccountRepository) *DirectoryService {
	return &DirectoryService{accounts: accounts}
}

// Resolve returns the account id registered under email. The match is
// exact and case-sensitive; a miss is repositories.ErrNotFound.
func (s *DirectoryService) Resolve(ctx context.Context, email string) (uuid.UUID, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return uuid.Nil, repositories.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve email: %w", err)
	}
	return account.ID, nil
}
