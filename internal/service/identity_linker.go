package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
	"github.com/prperemyshlev/identity-gateway/internal/utils"
	"go.uber.org/zap"
)

// IdentityLinker maps external identities onto local accounts
type IdentityLinker struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	logger   *zap.Logger
}

// NewIdentityLinker creates a new identity linker
func NewIdentityLinker(accounts repository.AccountRepository, profiles repository.ProfileRepository, logger *zap.Logger) *IdentityLinker {
	return &IdentityLinker{
		accounts: accounts,
		profiles: profiles,
		logger:   logger,
	}
}

// Resolve finds or creates the account for identity and refreshes its profile.
// Lookup order is external subject, then email (linking the subject), then create.
func (l *IdentityLinker) Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.Account, *domain.Profile, error) {
	if identity.SubjectID == "" || identity.Email == "" {
		return nil, nil, NewValidationError("External identity is missing a subject or email")
	}
	identity.Email = utils.NormalizeEmail(identity.Email)

	account, err := l.findOrCreate(ctx, identity)
	if err != nil {
		return nil, nil, err
	}

	provider := identity.Provider
	profile, err := l.profiles.Upsert(ctx, domain.ProfileUpdate{
		ID:        account.ID,
		Email:     account.Email,
		FullName:  identity.FullName,
		AvatarURL: identity.AvatarURL,
		Provider:  &provider,
	})
	if err != nil {
		return nil, nil, NewInternalError(err)
	}

	return account, profile, nil
}

// ResolveGoogle is Resolve plus removal of a profile row keyed by the Google
// subject, left over from when profiles were keyed that way.
func (l *IdentityLinker) ResolveGoogle(ctx context.Context, identity domain.ExternalIdentity) (*domain.Account, *domain.Profile, error) {
	account, profile, err := l.Resolve(ctx, identity)
	if err != nil {
		return nil, nil, err
	}

	if identity.SubjectID != account.ID {
		if err := l.profiles.Delete(ctx, identity.SubjectID); err != nil {
			l.logger.Warn("Failed to remove legacy Google profile",
				zap.String("user_id", account.ID),
				zap.Error(err),
			)
		}
	}

	return account, profile, nil
}

// Find returns the account identity already maps to, by subject and then by
// email, without linking or creating anything. It returns repository.ErrNotFound
// when neither matches.
func (l *IdentityLinker) Find(ctx context.Context, identity domain.ExternalIdentity) (*domain.Account, error) {
	account, err := l.accounts.GetByExternalSubjectID(ctx, identity.SubjectID)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return account, err
	}
	return l.accounts.GetByEmail(ctx, utils.NormalizeEmail(identity.Email))
}

func (l *IdentityLinker) findOrCreate(ctx context.Context, identity domain.ExternalIdentity) (*domain.Account, error) {
	account, err := l.accounts.GetByExternalSubjectID(ctx, identity.SubjectID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, NewInternalError(err)
	}

	account, err = l.linkByEmail(ctx, identity)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return account, wrapInternal(err)
	}

	sub := identity.SubjectID
	account = &domain.Account{
		Email:             identity.Email,
		PasswordHash:      utils.PlaceholderPasswordHash(),
		ExternalSubjectID: &sub,
	}
	err = l.accounts.Create(ctx, account)
	switch {
	case err == nil:
		l.logger.Info("Created account for external identity",
			zap.String("user_id", account.ID),
			zap.String("provider", identity.Provider),
		)
		return account, nil
	case errors.Is(err, repository.ErrDuplicateEmail):
		// a concurrent request created the account first
		account, err = l.linkByEmail(ctx, identity)
		return account, wrapInternal(err)
	case errors.Is(err, repository.ErrDuplicateExternalID):
		account, err = l.accounts.GetByExternalSubjectID(ctx, identity.SubjectID)
		return account, wrapInternal(err)
	default:
		return nil, NewInternalError(err)
	}
}

// linkByEmail attaches the external subject to the account owning the email.
// An account already linked to another subject keeps its existing link.
func (l *IdentityLinker) linkByEmail(ctx context.Context, identity domain.ExternalIdentity) (*domain.Account, error) {
	account, err := l.accounts.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}

	if account.ExternalSubjectID != nil {
		return account, nil
	}

	if err := l.accounts.LinkExternalSubject(ctx, account.ID, identity.SubjectID); err != nil {
		if errors.Is(err, repository.ErrDuplicateExternalID) {
			return l.accounts.GetByExternalSubjectID(ctx, identity.SubjectID)
		}
		return nil, fmt.Errorf("failed to link account %s: %w", account.ID, err)
	}

	sub := identity.SubjectID
	account.ExternalSubjectID = &sub
	l.logger.Info("Linked external identity to existing account",
		zap.String("user_id", account.ID),
		zap.String("provider", identity.Provider),
	)

	return account, nil
}

func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return NewInternalError(err)
}
