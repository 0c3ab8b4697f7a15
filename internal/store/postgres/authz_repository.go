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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
)

// AuthzStore implements authz.Store
type AuthzStore struct {
	catalog
	db *DB
}

// NewAuthzStore creates a new authorization store
func NewAuthzStore(db *DB) *AuthzStore {
	return &AuthzStore{catalog: catalog{q: db.pool}, db: db}
}

// WithinTx runs fn in a read-committed transaction. Uniqueness races between
// concurrent grants surface as authz.ErrAlreadyGranted.
func (s *AuthzStore) WithinTx(ctx context.Context, fn func(tx authz.Tx) error) error {
	return s.db.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&authzTx{catalog: catalog{q: tx}})
	})
}

// GetPrincipal retrieves the principal a decision is made for
func (s *AuthzStore) GetPrincipal(ctx context.Context, id string) (*identity.User, error) {
	u, err := scanPrincipal(s.db.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = $1`, id))
	if errors.Is(err, identity.ErrUserNotFound) {
		return nil, authz.ErrPrincipalNotFound
	}
	return u, err
}

// ListRoleAssignments loads assignments, roles and linked permissions in one
// statement so the result reflects a single snapshot.
func (s *AuthzStore) ListRoleAssignments(ctx context.Context, principalID string) ([]*authz.RoleAssignment, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT ra.id, ra.role_id, ra.granted_by, ra.granted_at, ra.expires_at,
			r.tenant_id, r.name, r.description, r.level, r.super_admin, r.created_at, r.updated_at,
			p.id, p.resource, p.action, rp.conditions
		FROM role_assignments ra
		JOIN roles r ON r.id = ra.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ra.principal_id = $1
		ORDER BY ra.granted_at ASC, ra.id ASC, p.resource ASC, p.action ASC
	`, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role assignments: %w", err)
	}
	defer rows.Close()

	var out []*authz.RoleAssignment
	var cur *authz.RoleAssignment
	for rows.Next() {
		var (
			a                   authz.RoleAssignment
			r                   authz.Role
			permID, res, action *string
			conds               []byte
		)
		if err := rows.Scan(
			&a.ID, &a.RoleID, &a.GrantedBy, &a.GrantedAt, &a.ExpiresAt,
			&r.TenantID, &r.Name, &r.Description, &r.Level, &r.SuperAdmin, &r.CreatedAt, &r.UpdatedAt,
			&permID, &res, &action, &conds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		if cur == nil || cur.ID != a.ID {
			a.PrincipalID = principalID
			r.ID = a.RoleID
			r.Permissions = []authz.Permission{}
			a.Role = &r
			cur = &a
			out = append(out, cur)
		}
		if permID == nil {
			continue
		}
		c, err := decodeConditions(conds)
		if err != nil {
			return nil, err
		}
		cur.Role.Permissions = append(cur.Role.Permissions, authz.Permission{
			ID: *permID, Resource: *res, Action: authz.Action(*action), Conditions: c,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read role assignments: %w", err)
	}
	return out, nil
}

// ListDirectGrants loads the principal's direct grants
func (s *AuthzStore) ListDirectGrants(ctx context.Context, principalID string) ([]*authz.DirectGrant, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT `+directGrantColumns+`
		FROM direct_grants g
		JOIN permissions p ON p.id = g.permission_id
		WHERE g.principal_id = $1
		ORDER BY g.granted_at ASC, g.id ASC
	`, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query direct grants: %w", err)
	}
	defer rows.Close()

	var out []*authz.DirectGrant
	for rows.Next() {
		g, err := scanDirectGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read direct grants: %w", err)
	}
	return out, nil
}

// RoleInUse reports whether any principal holds the role
func (s *AuthzStore) RoleInUse(ctx context.Context, roleID string) (bool, error) {
	var inUse bool
	err := s.db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_assignments WHERE role_id = $1)`, roleID,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check role usage: %w", err)
	}
	return inUse, nil
}

// ListAuditLog returns a tenant's audit entries, newest first. A non-positive
// limit returns every entry.
func (s *AuthzStore) ListAuditLog(ctx context.Context, tenantID string, limit, offset int) ([]*audit.Entry, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, tenant_id, actor_id, action, target_id, resource, metadata, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, tenantID, lim, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*audit.Entry, 0)
	for rows.Next() {
		var (
			e      audit.Entry
			action string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &action, &e.TargetID, &e.Resource, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// SweepExpired deletes assignments and grants expired at now
func (s *AuthzStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.db.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, table := range []string{"role_assignments", "direct_grants"} {
			tag, err := tx.Exec(ctx,
				`DELETE FROM `+table+` WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
			if err != nil {
				return fmt.Errorf("failed to sweep %s: %w", table, err)
			}
			n += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// catalog implements authz.CatalogReader and authz.CatalogWriter on any querier
type catalog struct {
	q querier
}

func (c catalog) GetPermission(ctx context.Context, resource string, action authz.Action) (*authz.Permission, error) {
	var p authz.Permission
	var act string
	err := c.q.QueryRow(ctx, `
		SELECT id, resource, action FROM permissions WHERE resource = $1 AND action = $2
	`, resource, string(action)).Scan(&p.ID, &p.Resource, &act)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrUnknownPermission
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	p.Action = authz.Action(act)
	return &p, nil
}

func (c catalog) ListPermissions(ctx context.Context) ([]*authz.Permission, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, resource, action FROM permissions
		ORDER BY resource ASC,
			array_position(ARRAY['READ','WRITE','DELETE','MANAGE'], action) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]*authz.Permission, 0)
	for rows.Next() {
		var p authz.Permission
		var act string
		if err := rows.Scan(&p.ID, &p.Resource, &act); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		p.Action = authz.Action(act)
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}

const roleColumns = `id, tenant_id, name, description, level, super_admin, created_at, updated_at`

func (c catalog) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	return c.loadRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
}

func (c catalog) FindRoleByName(ctx context.Context, tenantID, name string) (*authz.Role, error) {
	return c.loadRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND name = $2`, tenantID, name)
}

func (c catalog) ListRoles(ctx context.Context, tenantID string) ([]*authz.Role, error) {
	rows, err := c.q.Query(ctx, `
		SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 ORDER BY level DESC, name ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	roles := make([]*authz.Role, 0)
	ids := make([]string, 0)
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		roles = append(roles, r)
		ids = append(ids, r.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}

	perms, err := c.rolePermissions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		r.Permissions = perms[r.ID]
	}
	return roles, nil
}

func (c catalog) UpsertPermission(ctx context.Context, resource string, action authz.Action) (*authz.Permission, error) {
	if err := authz.ValidateEntry(resource, action); err != nil {
		return nil, err
	}
	_, err := c.q.Exec(ctx, `
		INSERT INTO permissions (id, resource, action) VALUES ($1, $2, $3)
		ON CONFLICT (resource, action) DO NOTHING
	`, uuid.Must(uuid.NewV7()).String(), resource, string(action))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert permission: %w", err)
	}
	return c.GetPermission(ctx, resource, action)
}

func (c catalog) UpsertRole(ctx context.Context, tenantID, name, description string, level int, superAdmin bool) (*authz.Role, error) {
	now := time.Now()
	_, err := c.q.Exec(ctx, `
		INSERT INTO roles (id, tenant_id, name, description, level, super_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (tenant_id, name) DO NOTHING
	`, uuid.Must(uuid.NewV7()).String(), tenantID, name, description, level, superAdmin, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert role: %w", err)
	}
	return c.FindRoleByName(ctx, tenantID, name)
}

func (c catalog) LinkRolePermission(ctx context.Context, roleID, permissionID string, conditions authz.Conditions) error {
	conds, err := encodeConditions(conditions)
	if err != nil {
		return err
	}
	_, err = c.q.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, conditions) VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`, roleID, permissionID, conds)
	if err != nil {
		if isForeignKeyViolation(err) {
			if constraintName(err) == "role_permissions_role_id_fkey" {
				return authz.ErrRoleNotFound
			}
			return authz.ErrUnknownPermission
		}
		return fmt.Errorf("failed to link role permission: %w", err)
	}
	return nil
}

func (c catalog) loadRole(ctx context.Context, query string, args ...any) (*authz.Role, error) {
	r, err := scanRole(c.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	perms, err := c.rolePermissions(ctx, []string{r.ID})
	if err != nil {
		return nil, err
	}
	r.Permissions = perms[r.ID]
	return r, nil
}

// rolePermissions returns the linked permissions of each role, with the
// link's conditions attached
func (c catalog) rolePermissions(ctx context.Context, roleIDs []string) (map[string][]authz.Permission, error) {
	out := make(map[string][]authz.Permission, len(roleIDs))
	for _, id := range roleIDs {
		out[id] = []authz.Permission{}
	}
	if len(roleIDs) == 0 {
		return out, nil
	}

	rows, err := c.q.Query(ctx, `
		SELECT rp.role_id, p.id, p.resource, p.action, rp.conditions
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY p.resource ASC, p.action ASC
	`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			roleID, act string
			p           authz.Permission
			conds       []byte
		)
		if err := rows.Scan(&roleID, &p.ID, &p.Resource, &act, &conds); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		p.Action = authz.Action(act)
		if p.Conditions, err = decodeConditions(conds); err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], p)
	}
	return out, rows.Err()
}

// authzTx implements authz.Tx on a pgx transaction
type authzTx struct {
	catalog
}

func (t *authzTx) GetRoleAssignment(ctx context.Context, principalID, roleID string) (*authz.RoleAssignment, error) {
	var a authz.RoleAssignment
	err := t.q.QueryRow(ctx, `
		SELECT id, principal_id, role_id, granted_by, granted_at, expires_at
		FROM role_assignments WHERE principal_id = $1 AND role_id = $2
		FOR UPDATE
	`, principalID, roleID).Scan(&a.ID, &a.PrincipalID, &a.RoleID, &a.GrantedBy, &a.GrantedAt, &a.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrNotGranted
		}
		return nil, fmt.Errorf("failed to get role assignment: %w", err)
	}
	return &a, nil
}

func (t *authzTx) InsertRoleAssignment(ctx context.Context, a *authz.RoleAssignment) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO role_assignments (id, principal_id, role_id, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.PrincipalID, a.RoleID, a.GrantedBy, a.GrantedAt, a.ExpiresAt)
	return mapInsertError(err, "role assignment")
}

func (t *authzTx) DeleteRoleAssignment(ctx context.Context, principalID, roleID string) error {
	tag, err := t.q.Exec(ctx,
		`DELETE FROM role_assignments WHERE principal_id = $1 AND role_id = $2`, principalID, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrNotGranted
	}
	return nil
}

func (t *authzTx) GetDirectGrant(ctx context.Context, principalID, permissionID string) (*authz.DirectGrant, error) {
	g, err := scanDirectGrant(t.q.QueryRow(ctx, `
		SELECT `+directGrantColumns+`
		FROM direct_grants g
		JOIN permissions p ON p.id = g.permission_id
		WHERE g.principal_id = $1 AND g.permission_id = $2
		FOR UPDATE OF g
	`, principalID, permissionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authz.ErrNotGranted
	}
	return g, err
}

func (t *authzTx) InsertDirectGrant(ctx context.Context, g *authz.DirectGrant) error {
	conds, err := encodeConditions(g.Permission.Conditions)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO direct_grants (id, principal_id, permission_id, conditions, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.ID, g.PrincipalID, g.Permission.ID, conds, g.GrantedBy, g.GrantedAt, g.ExpiresAt)
	return mapInsertError(err, "direct grant")
}

func (t *authzTx) DeleteDirectGrant(ctx context.Context, principalID, permissionID string) error {
	tag, err := t.q.Exec(ctx,
		`DELETE FROM direct_grants WHERE principal_id = $1 AND permission_id = $2`, principalID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to delete direct grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrNotGranted
	}
	return nil
}

func (t *authzTx) AppendAuditLog(ctx context.Context, e *audit.Entry) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO audit_log (id, tenant_id, actor_id, action, target_id, resource, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.TenantID, e.ActorID, string(e.Action), e.TargetID, e.Resource, meta, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

const directGrantColumns = `g.id, g.principal_id, g.granted_by, g.granted_at, g.expires_at,
		p.id, p.resource, p.action, g.conditions`

func scanDirectGrant(row pgx.Row) (*authz.DirectGrant, error) {
	var (
		g     authz.DirectGrant
		act   string
		conds []byte
	)
	err := row.Scan(
		&g.ID, &g.PrincipalID, &g.GrantedBy, &g.GrantedAt, &g.ExpiresAt,
		&g.Permission.ID, &g.Permission.Resource, &act, &conds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan direct grant: %w", err)
	}
	g.Permission.Action = authz.Action(act)
	if g.Permission.Conditions, err = decodeConditions(conds); err != nil {
		return nil, err
	}
	return &g, nil
}

func scanRole(row pgx.Row) (*authz.Role, error) {
	var r authz.Role
	err := row.Scan(&r.ID, &r.TenantID, &r.Name, &r.Description, &r.Level, &r.SuperAdmin, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	return &r, nil
}

func mapInsertError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return authz.ErrAlreadyGranted
	case isForeignKeyViolation(err):
		switch constraintName(err) {
		case "role_assignments_principal_id_fkey", "direct_grants_principal_id_fkey":
			return authz.ErrPrincipalNotFound
		case "role_assignments_role_id_fkey":
			return authz.ErrRoleNotFound
		default:
			return authz.ErrUnknownPermission
		}
	default:
		return fmt.Errorf("failed to insert %s: %w", what, err)
	}
}

func encodeConditions(c authz.Conditions) ([]byte, error) {
	if len(c) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	return b, nil
}

func decodeConditions(b []byte) (authz.Conditions, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var c authz.Conditions
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to decode conditions: %w", err)
	}
	return c, nil
}
