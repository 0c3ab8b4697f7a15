package authz

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrPrincipalNotFound   = errors.New("principal not found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrUnknownPermission   = errors.New("permission is not in the catalog")
	ErrAlreadyGranted      = errors.New("already granted")
	ErrNotGranted          = errors.New("not granted")
	ErrTenantMismatch      = errors.New("tenant mismatch")
	ErrPrivilegeEscalation = errors.New("privilege escalation")
	ErrInvalidAction       = errors.New("invalid action")
	ErrInvalidResource     = errors.New("invalid resource")
	ErrInvalidExpiry       = errors.New("expiry must be in the future")
)

// Permission is a catalog entry (resource, action). When it reaches a
// principal through a grant it may carry that grant's conditions.
type Permission struct {
	ID         string     `json:"id"`
	Resource   string     `json:"resource"`
	Action     Action     `json:"action"`
	Conditions Conditions `json:"conditions,omitempty"`
}

// Role is a tenant-scoped bundle of permissions. The global SUPER_ADMIN role
// has an empty TenantID and SuperAdmin set.
type Role struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Level       int          `json:"level"`
	SuperAdmin  bool         `json:"super_admin"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Global reports whether the role lives outside every tenant.
func (r *Role) Global() bool {
	return r.TenantID == ""
}

// RoleAssignment represents a role granted to a principal
type RoleAssignment struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	RoleID      string     `json:"role_id"`
	Role        *Role      `json:"role,omitempty"`
	GrantedBy   string     `json:"granted_by"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the assignment no longer counts at now.
func (a *RoleAssignment) Expired(now time.Time) bool {
	return expired(a.ExpiresAt, now)
}

// DirectGrant attaches a permission to a principal without a role
type DirectGrant struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	Permission  Permission `json:"permission"`
	GrantedBy   string     `json:"granted_by"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the grant no longer counts at now.
func (g *DirectGrant) Expired(now time.Time) bool {
	return expired(g.ExpiresAt, now)
}

func expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && !now.Before(*expiresAt)
}
