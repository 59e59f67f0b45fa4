package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
)

// AccessControl resolves platform and organization roles for authorization checks
type AccessControl struct {
	profiles    repository.ProfileRepository
	memberships repository.MembershipRepository
}

// NewAccessControl creates a new access control service
func NewAccessControl(profiles repository.ProfileRepository, memberships repository.MembershipRepository) *AccessControl {
	return &AccessControl{
		profiles:    profiles,
		memberships: memberships,
	}
}

// PlatformRole loads the stored platform role of userID. Users without a profile are reps.
func (a *AccessControl) PlatformRole(ctx context.Context, userID string) (domain.PlatformRole, error) {
	profile, err := a.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PlatformRoleRep, nil
		}
		return "", NewInternalError(err)
	}

	if !profile.PlatformRole.Valid() {
		return domain.PlatformRoleRep, nil
	}
	return profile.PlatformRole, nil
}

// CheckPlatformRole grants access when role ranks at or above any of required
func (a *AccessControl) CheckPlatformRole(role domain.PlatformRole, required ...domain.PlatformRole) error {
	if role.Satisfies(required...) {
		return nil
	}

	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}

	return NewForbiddenError(
		fmt.Sprintf("Requires platform role: %s", strings.Join(names, ", ")),
		map[string]interface{}{
			"role":     string(role),
			"required": names,
		},
	)
}

// CheckOrgRole returns the membership of userID in orgID when its role is one of
// required. An empty required set accepts any member.
func (a *AccessControl) CheckOrgRole(ctx context.Context, userID, orgID string, required ...domain.OrgRole) (*domain.OrganizationMembership, error) {
	membership, err := a.memberships.Get(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewForbiddenError("Not a member of this organization", map[string]interface{}{
				"orgId": orgID,
			})
		}
		return nil, NewInternalError(err)
	}

	if len(required) > 0 && !membership.Role.In(required...) {
		names := make([]string, len(required))
		for i, r := range required {
			names[i] = string(r)
		}
		return nil, NewForbiddenError(
			fmt.Sprintf("Requires one of: %s", strings.Join(names, ", ")),
			map[string]interface{}{
				"orgId":    orgID,
				"role":     string(membership.Role),
				"required": names,
			},
		)
	}

	return membership, nil
}
