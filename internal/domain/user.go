package domain

import "time"

// Account represents a credential-bearing identity in the system
type Account struct {
	ID                string    `json:"id" db:"id"`
	Email             string    `json:"email" db:"email"`
	PasswordHash      string    `json:"-" db:"password_hash"`
	ExternalSubjectID *string   `json:"external_subject_id,omitempty" db:"external_subject_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Profile is the read model for display and role decisions.
// Its ID is always the owning Account.ID.
type Profile struct {
	ID             string       `json:"id" db:"id"`
	Email          string       `json:"email" db:"email"`
	FullName       *string      `json:"full_name,omitempty" db:"full_name"`
	AvatarURL      *string      `json:"avatar_url,omitempty" db:"avatar_url"`
	Provider       *string      `json:"provider,omitempty" db:"provider"`
	PlatformRole   PlatformRole `json:"platform_role" db:"platform_role"`
	OrganizationID *string      `json:"organization_id,omitempty" db:"organization_id"`
	Timezone       string       `json:"timezone" db:"timezone"`
	Currency       string       `json:"currency" db:"currency"`
	Active         bool         `json:"active" db:"active"`
}

// ProfileUpdate carries the identity attributes refreshed on every login.
// Nil fields leave the stored value untouched.
type ProfileUpdate struct {
	ID        string
	Email     string
	FullName  *string
	AvatarURL *string
	Provider  *string
}

const (
	DefaultTimezone = "UTC"
	DefaultCurrency = "USD"
)

// Identity providers recorded on the profile
const (
	ProviderLocal    = "email"
	ProviderGoogle   = "google"
	ProviderSupabase = "supabase"
)
