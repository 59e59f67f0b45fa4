package domain

import "fmt"

// PlatformRole is the global rank of a user, independent of organizations
type PlatformRole string

const (
	PlatformRoleRep        PlatformRole = "rep"
	PlatformRoleAdmin      PlatformRole = "admin"
	PlatformRoleSuperAdmin PlatformRole = "super_admin"
)

var platformRoleRank = map[PlatformRole]int{
	PlatformRoleRep:        0,
	PlatformRoleAdmin:      1,
	PlatformRoleSuperAdmin: 2,
}

// Rank returns the numeric position of the role in the hierarchy.
// Unknown roles rank below rep.
func (r PlatformRole) Rank() int {
	rank, ok := platformRoleRank[r]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether r is one of the known platform roles
func (r PlatformRole) Valid() bool {
	_, ok := platformRoleRank[r]
	return ok
}

// Satisfies reports whether r ranks at or above at least one of required
func (r PlatformRole) Satisfies(required ...PlatformRole) bool {
	for _, req := range required {
		if req.Valid() && r.Rank() >= req.Rank() {
			return true
		}
	}
	return false
}

// ParsePlatformRole converts a raw string into a PlatformRole
func ParsePlatformRole(s string) (PlatformRole, error) {
	r := PlatformRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown platform role %q", s)
	}
	return r, nil
}

// OrgRole is the per-organization rank of a member
type OrgRole string

const (
	OrgRoleViewer OrgRole = "viewer"
	OrgRoleMember OrgRole = "member"
	OrgRoleAdmin  OrgRole = "admin"
)

// Valid reports whether r is one of the known organization roles
func (r OrgRole) Valid() bool {
	switch r {
	case OrgRoleViewer, OrgRoleMember, OrgRoleAdmin:
		return true
	}
	return false
}

// In reports whether r is contained in roles
func (r OrgRole) In(roles ...OrgRole) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}
