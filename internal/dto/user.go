package dto

import (
	"time"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
)

// UserResponse represents a user profile in responses
type UserResponse struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       *string `json:"fullName"`
	AvatarURL      *string `json:"avatarUrl"`
	Provider       *string `json:"provider"`
	PlatformRole   string  `json:"platformRole"`
	OrganizationID *string `json:"organizationId"`
	Timezone       string  `json:"timezone"`
	Currency       string  `json:"currency"`
	Active         bool    `json:"active"`
}

// NewUserResponse maps a profile to its response shape
func NewUserResponse(p *domain.Profile) UserResponse {
	return UserResponse{
		ID:             p.ID,
		Email:          p.Email,
		FullName:       p.FullName,
		AvatarURL:      p.AvatarURL,
		Provider:       p.Provider,
		PlatformRole:   string(p.PlatformRole),
		OrganizationID: p.OrganizationID,
		Timezone:       p.Timezone,
		Currency:       p.Currency,
		Active:         p.Active,
	}
}

// UpdatePlatformRoleRequest changes a user's platform role
type UpdatePlatformRoleRequest struct {
	PlatformRole string `json:"platformRole" binding:"required"`
}

// UpdateMemberRoleRequest changes a member's organization role
type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// MemberResponse represents an organization membership
type MemberResponse struct {
	OrgID     string `json:"orgId"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// NewMemberResponse maps a membership to its response shape
func NewMemberResponse(m *domain.OrganizationMembership) MemberResponse {
	return MemberResponse{
		OrgID:     m.OrgID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}
