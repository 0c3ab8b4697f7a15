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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/observability/logger"
)

// AdminService mutates role assignments and direct grants. Each mutation and
// its audit entry are written in one transaction.
type AdminService struct {
	store Store
	svc   *Service
}

// NewAdminService creates a new administration service. It accepts the same
// options as NewService.
func NewAdminService(store Store, opts ...Option) *AdminService {
	return &AdminService{
		store: store,
		svc:   NewService(store, opts...),
	}
}

// AssignRoleInput carries an assignment request
type AssignRoleInput struct {
	PrincipalID string
	RoleID      string
	ActorID     string
	ExpiresAt   *time.Time
}

// GrantPermissionInput carries a direct grant request
type GrantPermissionInput struct {
	PrincipalID string
	Resource    string
	Action      Action
	Conditions  Conditions
	ActorID     string
	ExpiresAt   *time.Time
}

// AssignRole assigns a role to a principal. An expired leftover assignment is
// replaced; a live one yields ErrAlreadyGranted.
func (a *AdminService) AssignRole(ctx context.Context, in AssignRoleInput) (*RoleAssignment, error) {
	var out *RoleAssignment
	err := a.run(ctx, audit.ActionAssignRole, in.ActorID, in.PrincipalID, func(ctx context.Context) error {
		now := a.svc.now()
		if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
			return ErrInvalidExpiry
		}
		target, err := a.target(ctx, in.PrincipalID)
		if err != nil {
			return err
		}
		actor, err := a.actor(ctx, in.ActorID, target.TenantID)
		if err != nil {
			return err
		}

		return a.store.WithinTx(ctx, func(tx Tx) error {
			role, err := tx.GetRole(ctx, in.RoleID)
			if err != nil {
				return err
			}
			if err := checkRoleTenant(role, target); err != nil {
				return err
			}
			if !actor.canAssign(role) {
				return fmt.Errorf("%w: role %s is above the actor's level", ErrPrivilegeEscalation, role.Name)
			}

			replaced := false
			existing, err := tx.GetRoleAssignment(ctx, target.ID, role.ID)
			switch {
			case err == nil && !existing.Expired(now):
				return ErrAlreadyGranted
			case err == nil:
				if err := tx.DeleteRoleAssignment(ctx, target.ID, role.ID); err != nil {
					return err
				}
				replaced = true
			case !errors.Is(err, ErrNotGranted):
				return err
			}

			assignment := &RoleAssignment{
				ID:          uuid.Must(uuid.NewV7()).String(),
				PrincipalID: target.ID,
				RoleID:      role.ID,
				GrantedBy:   in.ActorID,
				GrantedAt:   now,
				ExpiresAt:   in.ExpiresAt,
			}
			if err := tx.InsertRoleAssignment(ctx, assignment); err != nil {
				return err
			}

			meta := map[string]any{
				audit.AttrRoleID:   role.ID,
				audit.AttrRoleName: role.Name,
				audit.AttrReplaced: replaced,
			}
			if in.ExpiresAt != nil {
				meta[audit.AttrExpiresAt] = in.ExpiresAt.UTC().Format(time.RFC3339)
			}
			entry := audit.NewEntry(target.TenantID, in.ActorID, audit.ActionAssignRole, target.ID, ResourceRoles, meta, now)
			if err := tx.AppendAuditLog(ctx, entry); err != nil {
				return fmt.Errorf("failed to append audit log: %w", err)
			}

			assignment.Role = role
			out = assignment
			return nil
		})
	})
	return out, err
}

// RemoveRole removes a role assignment. Removing an assignment that does not
// exist or has expired yields ErrNotGranted.
func (a *AdminService) RemoveRole(ctx context.Context, principalID, roleID, actorID string) error {
	return a.run(ctx, audit.ActionRemoveRole, actorID, principalID, func(ctx context.Context) error {
		target, err := a.target(ctx, principalID)
		if err != nil {
			return err
		}
		actor, err := a.actor(ctx, actorID, target.TenantID)
		if err != nil {
			return err
		}

		return a.store.WithinTx(ctx, func(tx Tx) error {
			role, err := tx.GetRole(ctx, roleID)
			if err != nil {
				return err
			}
			if err := checkRoleTenant(role, target); err != nil {
				return err
			}
			if !actor.canAssign(role) {
				return fmt.Errorf("%w: role %s is above the actor's level", ErrPrivilegeEscalation, role.Name)
			}
			existing, err := tx.GetRoleAssignment(ctx, target.ID, role.ID)
			if err != nil {
				return err
			}
			// expired rows are already absent; the sweeper deletes them
			if existing.Expired(a.svc.now()) {
				return ErrNotGranted
			}
			if err := tx.DeleteRoleAssignment(ctx, target.ID, role.ID); err != nil {
				return err
			}

			meta := map[string]any{
				audit.AttrRoleID:   role.ID,
				audit.AttrRoleName: role.Name,
			}
			entry := audit.NewEntry(target.TenantID, actorID, audit.ActionRemoveRole, target.ID, ResourceRoles, meta, a.svc.now())
			if err := tx.AppendAuditLog(ctx, entry); err != nil {
				return fmt.Errorf("failed to append audit log: %w", err)
			}
			return nil
		})
	})
}

// GrantPermission attaches a catalog permission directly to a principal.
func (a *AdminService) GrantPermission(ctx context.Context, in GrantPermissionInput) (*DirectGrant, error) {
	var out *DirectGrant
	err := a.run(ctx, audit.ActionGrantPermission, in.ActorID, in.PrincipalID, func(ctx context.Context) error {
		if err := ValidateEntry(in.Resource, in.Action); err != nil {
			return err
		}
		now := a.svc.now()
		if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
			return ErrInvalidExpiry
		}
		target, err := a.target(ctx, in.PrincipalID)
		if err != nil {
			return err
		}
		actor, err := a.actor(ctx, in.ActorID, target.TenantID)
		if err != nil {
			return err
		}
		if !actor.canGrant(in.Resource, in.Action) {
			return fmt.Errorf("%w: actor does not hold %s on %s", ErrPrivilegeEscalation, in.Action, in.Resource)
		}

		return a.store.WithinTx(ctx, func(tx Tx) error {
			perm, err := tx.GetPermission(ctx, in.Resource, in.Action)
			if err != nil {
				return err
			}

			replaced := false
			existing, err := tx.GetDirectGrant(ctx, target.ID, perm.ID)
			switch {
			case err == nil && !existing.Expired(now):
				return ErrAlreadyGranted
			case err == nil:
				if err := tx.DeleteDirectGrant(ctx, target.ID, perm.ID); err != nil {
					return err
				}
				replaced = true
			case !errors.Is(err, ErrNotGranted):
				return err
			}

			grant := &DirectGrant{
				ID:          uuid.Must(uuid.NewV7()).String(),
				PrincipalID: target.ID,
				Permission: Permission{
					ID:         perm.ID,
					Resource:   perm.Resource,
					Action:     perm.Action,
					Conditions: in.Conditions.Clone(),
				},
				GrantedBy: in.ActorID,
				GrantedAt: now,
				ExpiresAt: in.ExpiresAt,
			}
			if err := tx.InsertDirectGrant(ctx, grant); err != nil {
				return err
			}

			meta := map[string]any{
				audit.AttrPermissionID: perm.ID,
				audit.AttrAction:       string(perm.Action),
				audit.AttrReplaced:     replaced,
			}
			if len(grant.Permission.Conditions) > 0 {
				meta[audit.AttrConditions] = grant.Permission.Conditions
			}
			if in.ExpiresAt != nil {
				meta[audit.AttrExpiresAt] = in.ExpiresAt.UTC().Format(time.RFC3339)
			}
			entry := audit.NewEntry(target.TenantID, in.ActorID, audit.ActionGrantPermission, target.ID, perm.Resource, meta, now)
			if err := tx.AppendAuditLog(ctx, entry); err != nil {
				return fmt.Errorf("failed to append audit log: %w", err)
			}

			out = grant
			return nil
		})
	})
	return out, err
}

// RevokePermission removes a direct grant. Revoking a grant that does not
// exist or has expired yields ErrNotGranted.
func (a *AdminService) RevokePermission(ctx context.Context, principalID, resource string, action Action, actorID string) error {
	return a.run(ctx, audit.ActionRevokePermission, actorID, principalID, func(ctx context.Context) error {
		if err := ValidateEntry(resource, action); err != nil {
			return err
		}
		target, err := a.target(ctx, principalID)
		if err != nil {
			return err
		}
		actor, err := a.actor(ctx, actorID, target.TenantID)
		if err != nil {
			return err
		}
		if !actor.canGrant(resource, action) {
			return fmt.Errorf("%w: actor does not hold %s on %s", ErrPrivilegeEscalation, action, resource)
		}

		return a.store.WithinTx(ctx, func(tx Tx) error {
			perm, err := tx.GetPermission(ctx, resource, action)
			if err != nil {
				return err
			}
			existing, err := tx.GetDirectGrant(ctx, target.ID, perm.ID)
			if err != nil {
				return err
			}
			if existing.Expired(a.svc.now()) {
				return ErrNotGranted
			}
			if err := tx.DeleteDirectGrant(ctx, target.ID, perm.ID); err != nil {
				return err
			}

			meta := map[string]any{
				audit.AttrPermissionID: perm.ID,
				audit.AttrAction:       string(perm.Action),
			}
			entry := audit.NewEntry(target.TenantID, actorID, audit.ActionRevokePermission, target.ID, perm.Resource, meta, a.svc.now())
			if err := tx.AppendAuditLog(ctx, entry); err != nil {
				return fmt.Errorf("failed to append audit log: %w", err)
			}
			return nil
		})
	})
}

// ListAuditLog returns a tenant's administration trail, newest first
func (a *AdminService) ListAuditLog(ctx context.Context, tenantID string, limit, offset int) ([]*audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := a.store.ListAuditLog(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return entries, nil
}

// run wraps one administration operation with a span, a metric and a log line.
func (a *AdminService) run(ctx context.Context, op audit.Action, actorID, principalID string, fn func(ctx context.Context) error) error {
	ctx, span := a.svc.tracer.Start(ctx, "authz.admin."+string(op))
	defer span.End()

	err := fn(ctx)
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.svc.logger.WarnContext(ctx, "administration operation failed",
			logger.Operation(string(op)),
			logger.ActorID(actorID),
			logger.PrincipalID(principalID),
			logger.Error(err),
		)
	} else {
		a.svc.logger.InfoContext(ctx, "administration operation applied",
			logger.Operation(string(op)),
			logger.ActorID(actorID),
			logger.PrincipalID(principalID),
		)
	}
	a.svc.instruments.RecordAdmin(ctx, string(op), result)
	return err
}

func (a *AdminService) target(ctx context.Context, principalID string) (*identity.User, error) {
	if principalID == "" {
		return nil, ErrPrincipalNotFound
	}
	return a.store.GetPrincipal(ctx, principalID)
}

func checkRoleTenant(role *Role, target *identity.User) error {
	if role.SuperAdmin && role.Global() {
		return nil
	}
	if role.TenantID != target.TenantID {
		return fmt.Errorf("%w: role %s belongs to another tenant", ErrTenantMismatch, role.Name)
	}
	return nil
}

// actorScope is what an actor is allowed to hand out.
type actorScope struct {
	trusted bool
	level   int
	set     *EffectivePermissionSet
}

// IsSystemActor reports whether id names an internal actor that bypasses the
// escalation guard.
func IsSystemActor(id string) bool {
	return id == audit.ActorSystem || id == audit.ActorSystemBootstrap
}

func (a *AdminService) actor(ctx context.Context, actorID, tenantID string) (*actorScope, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrPrivilegeEscalation)
	}
	if IsSystemActor(actorID) {
		return &actorScope{trusted: true}, nil
	}
	g, err := a.svc.resolve(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, fmt.Errorf("%w: unknown actor", ErrPrivilegeEscalation)
		}
		return nil, err
	}
	if !g.principal.Active {
		return nil, fmt.Errorf("%w: actor is inactive", ErrPrivilegeEscalation)
	}
	if g.superAdmin {
		return &actorScope{trusted: true}, nil
	}
	if g.principal.TenantID != tenantID {
		return nil, fmt.Errorf("%w: actor and principal are in different tenants", ErrTenantMismatch)
	}
	scope := &actorScope{set: g.set}
	for _, r := range g.roles {
		scope.level = max(scope.level, r.Level)
	}
	return scope, nil
}

func (s *actorScope) canAssign(r *Role) bool {
	if s.trusted {
		return true
	}
	return !r.SuperAdmin && s.level >= r.Level
}

// canGrant requires an unconditional holding. A grant limited to one branch
// does not let the actor hand out the permission elsewhere.
func (s *actorScope) canGrant(resource string, action Action) bool {
	if s.trusted {
		return true
	}
	return s.set.AllowsUnconditionally(resource, action)
}
