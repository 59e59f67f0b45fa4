package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
)

// AccountRepository persists credential-bearing accounts
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByExternalSubjectID(ctx context.Context, externalSubjectID string) (*domain.Account, error)
	LinkExternalSubject(ctx context.Context, id, externalSubjectID string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// Delete removes the account and its profile; memberships and integration tokens cascade
	Delete(ctx context.Context, id string) error
}

// ProfileRepository persists the profile read model
type ProfileRepository interface {
	Upsert(ctx context.Context, update domain.ProfileUpdate) (*domain.Profile, error)
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	UpdatePlatformRole(ctx context.Context, id string, role domain.PlatformRole) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// MembershipRepository persists organization memberships
type MembershipRepository interface {
	Get(ctx context.Context, orgID, userID string) (*domain.OrganizationMembership, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.OrganizationMembership, error)
	Upsert(ctx context.Context, membership *domain.OrganizationMembership) error
	UpdateRole(ctx context.Context, orgID, userID string, role domain.OrgRole) error
	Delete(ctx context.Context, orgID, userID string) error
}

// IntegrationTokenRepository persists RingCentral tokens, one row per user
type IntegrationTokenRepository interface {
	Get(ctx context.Context, userID string) (*domain.IntegrationToken, error)
	Upsert(ctx context.Context, token *domain.IntegrationToken) error
	Delete(ctx context.Context, userID string) error
}

// InvitationRepository looks up and consumes organization invitations
type InvitationRepository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error)
	MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error
}
