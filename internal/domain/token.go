package domain

import "time"

// SessionClaims represents the verified payload of a session token
type SessionClaims struct {
	Subject      string
	Email        string
	PlatformRole *PlatformRole
	ExpiresAt    time.Time
}

// StateClaims represents the verified payload of an OAuth state token
type StateClaims struct {
	UserID    string
	Purpose   string
	Nonce     string
	ExpiresAt time.Time
}

// OAuth state purposes
const (
	StatePurposeGoogle      = "google"
	StatePurposeRingCentral = "ringcentral"
)

// ExternalIdentity is a subject asserted by an external identity provider
type ExternalIdentity struct {
	SubjectID string
	Email     string
	FullName  *string
	AvatarURL *string
	Provider  string
}

// IntegrationToken stores a user's RingCentral OAuth tokens. One row per user.
type IntegrationToken struct {
	UserID       string    `json:"user_id" db:"user_id"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
