// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Role constants. Roles are compared case-insensitively.
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// ManagerRoles lists the roles allowed to perform ".manage" operations.
var ManagerRoles = []string{RoleAdmin, RoleOwner, RoleManager}

// IdentitySource records which resolution path produced an AuthenticatedUser.
type IdentitySource string

const (
	// SourceClaims means the user was built from embedded token claims.
	SourceClaims IdentitySource = "claims"
	// SourceProfile means the user was enriched from a profile lookup.
	SourceProfile IdentitySource = "profile"
)

// Principal is the subject of a bearer credential as validated by the
// identity provider, before tenant enrichment.
type Principal struct {
	Subject      string
	Email        string
	TenantID     *string
	IsSuperAdmin *bool
	Role         string
}

// HasTenantClaims reports whether the principal carries an embedded tenant.
func (p *Principal) HasTenantClaims() bool {
	return p.TenantID != nil && *p.TenantID != ""
}

// Profile is the stored account record used by the slow resolution path.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	TenantID     *string   `json:"tenant_id,omitempty"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthenticatedUser is the per-request identity injected by the auth middleware.
// It is never persisted.
type AuthenticatedUser struct {
	ID           string
	Email        string
	TenantID     *string
	IsSuperAdmin bool
	Role         string
	AccessToken  string
	Source       IdentitySource
}

// Tenant returns the tenant id or an empty string.
func (u *AuthenticatedUser) Tenant() string {
	if u == nil || u.TenantID == nil {
		return ""
	}
	return *u.TenantID
}

// HasTenant reports whether the user resolved to a tenant.
func (u *AuthenticatedUser) HasTenant() bool {
	return u.Tenant() != ""
}

// HasRole checks the role case-insensitively against any of the given roles.
func (u *AuthenticatedUser) HasRole(roles ...string) bool {
	if u == nil {
		return false
	}
	role := strings.TrimSpace(u.Role)
	for _, r := range roles {
		if strings.EqualFold(role, r) {
			return true
		}
	}
	return false
}
