package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
)

const identityKey = "identity"

// RequestIdentity is the authenticated caller of a request. Guards fill in the
// role fields as they resolve them so later handlers skip the lookups.
type RequestIdentity struct {
	UserID       string
	Email        string
	PlatformRole *domain.PlatformRole
	OrgID        string
	OrgRole      domain.OrgRole
}

func setIdentity(c *gin.Context, identity *RequestIdentity) {
	c.Set(identityKey, identity)
}

// GetIdentity returns the caller identity set by AuthMiddleware
func GetIdentity(c *gin.Context) (*RequestIdentity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*RequestIdentity)
	return identity, ok
}
