// Copyright 2026 The SalonHub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"context"
	"time"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/identity"
)

// Reader is everything the decision path needs from persistence.
type Reader interface {
	// GetPrincipal returns ErrPrincipalNotFound when the id is unknown
	GetPrincipal(ctx context.Context, id string) (*identity.User, error)

	// ListRoleAssignments returns every assignment of the principal, expired
	// ones included, each with its role and the role's linked permissions
	ListRoleAssignments(ctx context.Context, principalID string) ([]*RoleAssignment, error)

	// ListDirectGrants returns every direct grant of the principal, expired
	// ones included
	ListDirectGrants(ctx context.Context, principalID string) ([]*DirectGrant, error)
}

// CatalogReader reads permissions and roles.
type CatalogReader interface {
	// GetPermission returns ErrUnknownPermission when the pair is not in the catalog
	GetPermission(ctx context.Context, resource string, action Action) (*Permission, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)

	// GetRole returns the role with its linked permissions, or ErrRoleNotFound
	GetRole(ctx context.Context, id string) (*Role, error)
	// FindRoleByName looks up a role by tenant and name; the global role lives
	// under an empty tenant id
	FindRoleByName(ctx context.Context, tenantID, name string) (*Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]*Role, error)
}

// CatalogWriter seeds permissions and roles. Every method is idempotent.
type CatalogWriter interface {
	// UpsertPermission inserts the pair if absent and returns the stored row
	UpsertPermission(ctx context.Context, resource string, action Action) (*Permission, error)

	// UpsertRole inserts the role if absent. An existing row is returned as is
	// so operator edits survive a re-run.
	UpsertRole(ctx context.Context, tenantID, name, description string, level int, superAdmin bool) (*Role, error)

	// LinkRolePermission adds the link if absent and leaves an existing link untouched
	LinkRolePermission(ctx context.Context, roleID, permissionID string, conditions Conditions) error
}

// Tx is the write surface available inside WithinTx. Mutations and audit
// entries written through one Tx commit or roll back together.
type Tx interface {
	CatalogReader
	CatalogWriter

	// GetRoleAssignment returns ErrNotGranted when no row exists, expired or not
	GetRoleAssignment(ctx context.Context, principalID, roleID string) (*RoleAssignment, error)
	// InsertRoleAssignment returns ErrAlreadyGranted on a uniqueness conflict
	InsertRoleAssignment(ctx context.Context, a *RoleAssignment) error
	// DeleteRoleAssignment returns ErrNotGranted when no row was removed
	DeleteRoleAssignment(ctx context.Context, principalID, roleID string) error

	GetDirectGrant(ctx context.Context, principalID, permissionID string) (*DirectGrant, error)
	InsertDirectGrant(ctx context.Context, g *DirectGrant) error
	DeleteDirectGrant(ctx context.Context, principalID, permissionID string) error

	AppendAuditLog(ctx context.Context, entry *audit.Entry) error
}

// Store is the full persistence contract of the engine.
type Store interface {
	Reader
	CatalogReader

	// WithinTx runs fn in one transaction, committing when fn returns nil
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// RoleInUse reports whether any principal holds the role, expired rows included
	RoleInUse(ctx context.Context, roleID string) (bool, error)

	// ListAuditLog returns a tenant's audit entries, newest first
	ListAuditLog(ctx context.Context, tenantID string, limit, offset int) ([]*audit.Entry, error)

	// SweepExpired deletes assignments and grants expired at now. Expired rows
	// are already ignored on read, so this is housekeeping only.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
