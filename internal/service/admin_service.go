package service

import (
	"context"
	"errors"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
	"go.uber.org/zap"
)

// adminService implements AdminService interface
type adminService struct {
	repos  *repository.Repositories
	access *AccessControl
	logger *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(repos *repository.Repositories, access *AccessControl, logger *zap.Logger) AdminService {
	return &adminService{
		repos:  repos,
		access: access,
		logger: logger,
	}
}

// UpdatePlatformRole sets the platform role of targetID
func (s *adminService) UpdatePlatformRole(ctx context.Context, targetID, role string) (*dto.UserResponse, error) {
	parsed, err := domain.ParsePlatformRole(role)
	if err != nil {
		return nil, NewValidationError("platformRole must be one of: rep, admin, super_admin")
	}

	if err := s.repos.Profile.UpdatePlatformRole(ctx, targetID, parsed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("User not found")
		}
		return nil, NewInternalError(err)
	}

	profile, err := s.repos.Profile.GetByID(ctx, targetID)
	if err != nil {
		return nil, NewInternalError(err)
	}

	s.logger.Info("Platform role updated",
		zap.String("user_id", targetID),
		zap.String("platform_role", string(parsed)),
	)

	resp := dto.NewUserResponse(profile)
	return &resp, nil
}

// DeleteUser removes an account and everything hanging off it. Nobody may delete themselves.
func (s *adminService) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return NewForbiddenError("You cannot delete your own account", nil)
	}

	if err := s.repos.Account.Delete(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("User not found")
		}
		return NewInternalError(err)
	}

	s.logger.Info("User deleted", zap.String("user_id", targetID), zap.String("deleted_by", actorID))
	return nil
}

// ListMembers returns the members of orgID, oldest first
func (s *adminService) ListMembers(ctx context.Context, orgID string) ([]dto.MemberResponse, error) {
	members, err := s.repos.Membership.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, NewInternalError(err)
	}

	result := make([]dto.MemberResponse, 0, len(members))
	for _, m := range members {
		result = append(result, dto.NewMemberResponse(m))
	}
	return result, nil
}

// UpdateMemberRole changes the organization role of userID
func (s *adminService) UpdateMemberRole(ctx context.Context, orgID, userID, role string) (*dto.MemberResponse, error) {
	parsed := domain.OrgRole(role)
	if !parsed.Valid() {
		return nil, NewValidationError("role must be one of: viewer, member, admin")
	}

	if err := s.repos.Membership.UpdateRole(ctx, orgID, userID, parsed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("Member not found")
		}
		return nil, NewInternalError(err)
	}

	membership, err := s.repos.Membership.Get(ctx, orgID, userID)
	if err != nil {
		return nil, NewInternalError(err)
	}

	resp := dto.NewMemberResponse(membership)
	return &resp, nil
}

// RemoveMember removes targetID from orgID. Members may always remove themselves;
// removing someone else takes an org admin or a platform super_admin.
func (s *adminService) RemoveMember(ctx context.Context, actorID string, actorRole domain.PlatformRole, orgID, targetID string) error {
	if actorID != targetID && actorRole != domain.PlatformRoleSuperAdmin {
		if _, err := s.access.CheckOrgRole(ctx, actorID, orgID, domain.OrgRoleAdmin); err != nil {
			return err
		}
	}

	if err := s.repos.Membership.Delete(ctx, orgID, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("Member not found")
		}
		return NewInternalError(err)
	}

	s.logger.Info("Member removed",
		zap.String("org_id", orgID),
		zap.String("user_id", targetID),
		zap.String("removed_by", actorID),
	)
	return nil
}
