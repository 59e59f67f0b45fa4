package domain

import "time"

// OrganizationMembership links a user to an organization with a role.
// Unique on (OrgID, UserID).
type OrganizationMembership struct {
	OrgID     string    `json:"org_id" db:"org_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      OrgRole   `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Invitation grants an email address a role in an organization
type Invitation struct {
	ID         string     `json:"id" db:"id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	OrgID      string     `json:"org_id" db:"org_id"`
	Email      string     `json:"email" db:"email"`
	Role       OrgRole    `json:"role" db:"role"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsExpired checks if the invitation can no longer be accepted
func (i Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
