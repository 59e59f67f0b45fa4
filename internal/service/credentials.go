package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
	"github.com/prperemyshlev/identity-gateway/internal/utils"
)

// CredentialStore owns local email/password accounts
type CredentialStore struct {
	accounts   repository.AccountRepository
	bcryptCost int
	// dummyHash is compared against when no real hash exists so every failure path costs the same
	dummyHash string
	checkHash func(password, hash string) bool
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(accounts repository.AccountRepository, bcryptCost int) (*CredentialStore, error) {
	dummyHash, err := utils.HashPassword("placeholder-password", bcryptCost)
	if err != nil {
		return nil, err
	}

	return &CredentialStore{
		accounts:   accounts,
		bcryptCost: bcryptCost,
		dummyHash:  dummyHash,
		checkHash:  utils.CheckPasswordHash,
	}, nil
}

// CreateLocalAccount stores a new account. A taken email is reported by the
// database's unique index as DuplicateAccount.
func (s *CredentialStore) CreateLocalAccount(ctx context.Context, email, password string) (*domain.Account, error) {
	passwordHash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, NewInternalError(err)
	}

	account := &domain.Account{
		Email:        utils.NormalizeEmail(email),
		PasswordHash: passwordHash,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, NewDuplicateAccountError()
		}
		return nil, NewInternalError(err)
	}

	return account, nil
}

// AuthenticateLocal checks an email/password pair
func (s *CredentialStore) AuthenticateLocal(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.checkHash(password, s.dummyHash)
			return nil, NewInvalidCredentialsError()
		}
		return nil, NewInternalError(err)
	}

	if utils.IsPlaceholderPasswordHash(account.PasswordHash) {
		s.checkHash(password, s.dummyHash)
		return nil, NewInvalidCredentialsError()
	}

	if !s.checkHash(password, account.PasswordHash) {
		return nil, NewInvalidCredentialsError()
	}

	return account, nil
}

// SetPassword replaces the password of an existing account
func (s *CredentialStore) SetPassword(ctx context.Context, accountID, password string) error {
	passwordHash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return NewInternalError(err)
	}

	if err := s.accounts.UpdatePasswordHash(ctx, accountID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("User not found")
		}
		return NewInternalError(fmt.Errorf("failed to set password: %w", err))
	}

	return nil
}
