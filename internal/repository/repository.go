package repository

import (
	"github.com/prperemyshlev/identity-gateway/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Account          AccountRepository
	Profile          ProfileRepository
	Membership       MembershipRepository
	IntegrationToken IntegrationTokenRepository
	Invitation       InvitationRepository
}

// NewRepositories creates all Postgres-backed repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		Account:          NewAccountRepository(db),
		Profile:          NewProfileRepository(db),
		Membership:       NewMembershipRepository(db),
		IntegrationToken: NewIntegrationTokenRepository(db),
		Invitation:       NewInvitationRepository(db),
	}
}
