package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/dto"
	"github.com/prperemyshlev/identity-gateway/internal/service"
	"go.uber.org/zap"
)

const (
	orgIDParam = "orgId"
	// maxPeekBodyBytes bounds the body read while looking for orgId
	maxPeekBodyBytes = 1 << 20
)

var (
	errOrgIDMissing   = errors.New("orgId is required")
	errOrgIDNotString = errors.New("orgId must be a string")
	errOrgIDInvalid   = errors.New("orgId must be a valid UUID")
	errBodyTooLarge   = errors.New("request body too large")
)

// Guards builds role-checking middleware. Both guards expect AuthMiddleware to run first.
type Guards struct {
	access *service.AccessControl
	logger *zap.Logger
}

// NewGuards creates a new guard factory
func NewGuards(access *service.AccessControl, logger *zap.Logger) *Guards {
	return &Guards{access: access, logger: logger}
}

// RequirePlatformRole admits callers whose platform role ranks at or above any of roles
func (g *Guards) RequirePlatformRole(roles ...domain.PlatformRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := mustIdentity(c)
		if !ok {
			return
		}

		role, err := g.resolvePlatformRole(c, identity)
		if err != nil {
			respondError(c, g.logger, err)
			return
		}

		if err := g.access.CheckPlatformRole(role, roles...); err != nil {
			respondError(c, g.logger, err)
			return
		}

		c.Next()
	}
}

// LoadPlatformRole resolves the caller's platform role onto the identity without restricting access
func (g *Guards) LoadPlatformRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := mustIdentity(c)
		if !ok {
			return
		}

		if _, err := g.resolvePlatformRole(c, identity); err != nil {
			respondError(c, g.logger, err)
			return
		}

		c.Next()
	}
}

// RequireOrgRole admits members of the organization named by orgId whose role is
// one of roles. With no roles any member is admitted.
func (g *Guards) RequireOrgRole(roles ...domain.OrgRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := mustIdentity(c)
		if !ok {
			return
		}

		orgID, err := orgIDFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad request",
				Message: err.Error(),
			})
			return
		}

		membership, err := g.access.CheckOrgRole(c.Request.Context(), identity.UserID, orgID, roles...)
		if err != nil {
			respondError(c, g.logger, err)
			return
		}

		identity.OrgID = membership.OrgID
		identity.OrgRole = membership.Role

		c.Next()
	}
}

// resolvePlatformRole prefers the role carried by the session and otherwise
// loads it once per request
func (g *Guards) resolvePlatformRole(c *gin.Context, identity *RequestIdentity) (domain.PlatformRole, error) {
	if identity.PlatformRole != nil && identity.PlatformRole.Valid() {
		return *identity.PlatformRole, nil
	}

	role, err := g.access.PlatformRole(c.Request.Context(), identity.UserID)
	if err != nil {
		return "", err
	}
	identity.PlatformRole = &role
	return role, nil
}

// parseID returns id in canonical form when it is a UUID. Account and
// organization ids are UUID columns, so anything else can never match a row.
func parseID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// orgIDFromRequest looks for orgId in the path, then a JSON body, then the
// query string, and requires it to be a UUID
func orgIDFromRequest(c *gin.Context) (string, error) {
	raw, err := rawOrgID(c)
	if err != nil {
		return "", err
	}
	id, ok := parseID(raw)
	if !ok {
		return "", errOrgIDInvalid
	}
	return id, nil
}

func rawOrgID(c *gin.Context) (string, error) {
	if id := c.Param(orgIDParam); id != "" {
		return id, nil
	}

	if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPeekBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", errBodyTooLarge
			}
			return "", errOrgIDMissing
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if len(body) > 0 {
			var fields map[string]interface{}
			if err := json.Unmarshal(body, &fields); err == nil {
				if raw, ok := fields[orgIDParam]; ok {
					id, isString := raw.(string)
					if !isString {
						return "", errOrgIDNotString
					}
					if id != "" {
						return id, nil
					}
				}
			}
		}
	}

	if values, ok := c.GetQueryArray(orgIDParam); ok {
		if len(values) != 1 {
			return "", errOrgIDNotString
		}
		if values[0] != "" {
			return values[0], nil
		}
	}

	return "", errOrgIDMissing
}
