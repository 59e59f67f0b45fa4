package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
	"github.com/prperemyshlev/identity-gateway/internal/service"
	"go.uber.org/zap"
)

// AdminHandler handles platform administration and organization membership endpoints
type AdminHandler struct {
	adminService service.AdminService
	logger       *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// UpdatePlatformRole changes a user's platform role
// @Summary Set a user's platform role
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body dto.UpdatePlatformRoleRequest true "New role"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/users/{id}/platform-role [patch]
func (h *AdminHandler) UpdatePlatformRole(c *gin.Context) {
	userID, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, h.logger, service.NewNotFoundError("User not found"))
		return
	}

	var req dto.UpdatePlatformRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.adminService.UpdatePlatformRole(c.Request.Context(), userID, req.PlatformRole)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeleteUser removes a user
// @Summary Delete a user
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	userID, ok := parseID(c.Param("id"))
	if !ok {
		respondError(c, h.logger, service.NewNotFoundError("User not found"))
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), identity.UserID, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}

// ListMembers lists the members of an organization
// @Summary List organization members
// @Tags organizations
// @Security BearerAuth
// @Produce json
// @Param orgId path string true "Organization ID"
// @Success 200 {array} dto.MemberResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /organizations/{orgId}/members [get]
func (h *AdminHandler) ListMembers(c *gin.Context) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	members, err := h.adminService.ListMembers(c.Request.Context(), identity.OrgID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

// UpdateMemberRole changes a member's organization role
// @Summary Change a member's role
// @Tags organizations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param orgId path string true "Organization ID"
// @Param userId path string true "User ID"
// @Param request body dto.UpdateMemberRoleRequest true "New role"
// @Success 200 {object} dto.MemberResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /organizations/{orgId}/members/{userId} [patch]
func (h *AdminHandler) UpdateMemberRole(c *gin.Context) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	userID, ok := parseID(c.Param("userId"))
	if !ok {
		respondError(c, h.logger, service.NewNotFoundError("Member not found"))
		return
	}

	var req dto.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	member, err := h.adminService.UpdateMemberRole(c.Request.Context(), identity.OrgID, userID, req.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, member)
}

// RemoveMember removes a member from an organization. Members may remove themselves.
// @Summary Remove an organization member
// @Tags organizations
// @Security BearerAuth
// @Produce json
// @Param orgId path string true "Organization ID"
// @Param userId path string true "User ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /organizations/{orgId}/members/{userId} [delete]
func (h *AdminHandler) RemoveMember(c *gin.Context) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	orgID, ok := parseID(c.Param(orgIDParam))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: errOrgIDInvalid.Error(),
		})
		return
	}
	userID, ok := parseID(c.Param("userId"))
	if !ok {
		respondError(c, h.logger, service.NewNotFoundError("Member not found"))
		return
	}

	role := domain.PlatformRoleRep
	if identity.PlatformRole != nil {
		role = *identity.PlatformRole
	}

	err := h.adminService.RemoveMember(c.Request.Context(), identity.UserID, role, orgID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}
