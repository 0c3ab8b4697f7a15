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

// Package memory is an in-process implementation of the persistence
// interfaces. Transactions work on a private copy of the state that replaces
// the shared one only on commit.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/tenant"
)

type pairKey struct {
	principalID string
	targetID    string
}

type roleKey struct {
	tenantID string
	name     string
}

type link struct {
	permissionID string
	conditions   authz.Conditions
}

type state struct {
	users       map[string]*identity.User
	tenants     map[string]*tenant.Tenant
	permissions map[string]*authz.Permission
	permByKey   map[authz.CatalogEntry]string
	roles       map[string]*authz.Role
	roleByName  map[roleKey]string
	links       map[string][]link
	assignments map[pairKey]*authz.RoleAssignment
	grants      map[pairKey]*authz.DirectGrant
	audit       []*audit.Entry
}

func newState() *state {
	return &state{
		users:       make(map[string]*identity.User),
		tenants:     make(map[string]*tenant.Tenant),
		permissions: make(map[string]*authz.Permission),
		permByKey:   make(map[authz.CatalogEntry]string),
		roles:       make(map[string]*authz.Role),
		roleByName:  make(map[roleKey]string),
		links:       make(map[string][]link),
		assignments: make(map[pairKey]*authz.RoleAssignment),
		grants:      make(map[pairKey]*authz.DirectGrant),
	}
}

// clone copies the maps. Stored values are never mutated in place, so the
// pointers can be shared between copies.
func (s *state) clone() *state {
	c := &state{
		users:       maps.Clone(s.users),
		tenants:     maps.Clone(s.tenants),
		permissions: maps.Clone(s.permissions),
		permByKey:   maps.Clone(s.permByKey),
		roles:       maps.Clone(s.roles),
		roleByName:  maps.Clone(s.roleByName),
		links:       make(map[string][]link, len(s.links)),
		assignments: maps.Clone(s.assignments),
		grants:      maps.Clone(s.grants),
		audit:       slices.Clone(s.audit),
	}
	for k, v := range s.links {
		c.links[k] = slices.Clone(v)
	}
	return c
}

// Store is a mutex-guarded in-memory store
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
}

// New creates an empty store
func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// WithinTx serializes transactions. fn sees its own writes; other readers see
// none of them until fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx authz.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.read().clone()
	if err := fn(&txView{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Reader

func (s *Store) GetPrincipal(ctx context.Context, id string) (*identity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := s.read().users[id]
	if !ok {
		return nil, authz.ErrPrincipalNotFound
	}
	return copyUser(u), nil
}

func (s *Store) ListRoleAssignments(ctx context.Context, principalID string) ([]*authz.RoleAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := s.read()
	var out []*authz.RoleAssignment
	for k, a := range st.assignments {
		if k.principalID != principalID {
			continue
		}
		cp := *a
		if r, ok := st.roles[a.RoleID]; ok {
			cp.Role = st.roleWithPermissions(r)
		}
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *authz.RoleAssignment) int { return a.GrantedAt.Compare(b.GrantedAt) })
	return out, nil
}

func (s *Store) ListDirectGrants(ctx context.Context, principalID string) ([]*authz.DirectGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*authz.DirectGrant
	for k, g := range s.read().grants {
		if k.principalID != principalID {
			continue
		}
		cp := *g
		cp.Permission.Conditions = g.Permission.Conditions.Clone()
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *authz.DirectGrant) int { return a.GrantedAt.Compare(b.GrantedAt) })
	return out, nil
}

// CatalogReader

func (s *Store) GetPermission(ctx context.Context, resource string, action authz.Action) (*authz.Permission, error) {
	return s.read().getPermission(resource, action)
}

func (s *Store) ListPermissions(ctx context.Context) ([]*authz.Permission, error) {
	return s.read().listPermissions(), nil
}

func (s *Store) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	return s.read().getRole(id)
}

func (s *Store) FindRoleByName(ctx context.Context, tenantID, name string) (*authz.Role, error) {
	return s.read().findRoleByName(tenantID, name)
}

func (s *Store) ListRoles(ctx context.Context, tenantID string) ([]*authz.Role, error) {
	return s.read().listRoles(tenantID), nil
}

// Store

func (s *Store) RoleInUse(ctx context.Context, roleID string) (bool, error) {
	for k := range s.read().assignments {
		if k.targetID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListAuditLog(ctx context.Context, tenantID string, limit, offset int) ([]*audit.Entry, error) {
	st := s.read()
	var out []*audit.Entry
	for i := len(st.audit) - 1; i >= 0; i-- {
		if st.audit[i].TenantID == tenantID {
			out = append(out, st.audit[i])
		}
	}
	if offset >= len(out) {
		return []*audit.Entry{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.WithinTx(ctx, func(tx authz.Tx) error {
		st := tx.(*txView).st
		for k, a := range st.assignments {
			if a.Expired(now) {
				delete(st.assignments, k)
				n++
			}
		}
		for k, g := range st.grants {
			if g.Expired(now) {
				delete(st.grants, k)
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// AuditEntries returns every audit entry in insertion order
func (s *Store) AuditEntries() []*audit.Entry {
	return slices.Clone(s.read().audit)
}

// Counts reports catalog, role and role-permission link row counts
func (s *Store) Counts() (permissions, roles, links int) {
	st := s.read()
	for _, l := range st.links {
		links += len(l)
	}
	return len(st.permissions), len(st.roles), links
}

// txView is the authz.Tx handed to WithinTx callbacks.
type txView struct {
	st *state
}

func (t *txView) GetPermission(ctx context.Context, resource string, action authz.Action) (*authz.Permission, error) {
	return t.st.getPermission(resource, action)
}

func (t *txView) ListPermissions(ctx context.Context) ([]*authz.Permission, error) {
	return t.st.listPermissions(), nil
}

func (t *txView) GetRole(ctx context.Context, id string) (*authz.Role, error) {
	return t.st.getRole(id)
}

func (t *txView) FindRoleByName(ctx context.Context, tenantID, name string) (*authz.Role, error) {
	return t.st.findRoleByName(tenantID, name)
}

func (t *txView) ListRoles(ctx context.Context, tenantID string) ([]*authz.Role, error) {
	return t.st.listRoles(tenantID), nil
}

func (t *txView) UpsertPermission(ctx context.Context, resource string, action authz.Action) (*authz.Permission, error) {
	if err := authz.ValidateEntry(resource, action); err != nil {
		return nil, err
	}
	key := authz.CatalogEntry{Resource: resource, Action: action}
	if id, ok := t.st.permByKey[key]; ok {
		cp := *t.st.permissions[id]
		return &cp, nil
	}
	p := &authz.Permission{ID: uuid.Must(uuid.NewV7()).String(), Resource: resource, Action: action}
	t.st.permissions[p.ID] = p
	t.st.permByKey[key] = p.ID
	cp := *p
	return &cp, nil
}

func (t *txView) UpsertRole(ctx context.Context, tenantID, name, description string, level int, superAdmin bool) (*authz.Role, error) {
	key := roleKey{tenantID: tenantID, name: name}
	if id, ok := t.st.roleByName[key]; ok {
		return t.st.getRole(id)
	}
	now := time.Now()
	r := &authz.Role{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		Level:       level,
		SuperAdmin:  superAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.st.roles[r.ID] = r
	t.st.roleByName[key] = r.ID
	cp := *r
	return &cp, nil
}

func (t *txView) LinkRolePermission(ctx context.Context, roleID, permissionID string, conditions authz.Conditions) error {
	if _, ok := t.st.roles[roleID]; !ok {
		return authz.ErrRoleNotFound
	}
	if _, ok := t.st.permissions[permissionID]; !ok {
		return authz.ErrUnknownPermission
	}
	for _, l := range t.st.links[roleID] {
		if l.permissionID == permissionID {
			return nil
		}
	}
	t.st.links[roleID] = append(t.st.links[roleID], link{permissionID: permissionID, conditions: conditions.Clone()})
	return nil
}

func (t *txView) GetRoleAssignment(ctx context.Context, principalID, roleID string) (*authz.RoleAssignment, error) {
	a, ok := t.st.assignments[pairKey{principalID, roleID}]
	if !ok {
		return nil, authz.ErrNotGranted
	}
	cp := *a
	return &cp, nil
}

func (t *txView) InsertRoleAssignment(ctx context.Context, a *authz.RoleAssignment) error {
	key := pairKey{a.PrincipalID, a.RoleID}
	if _, ok := t.st.assignments[key]; ok {
		return authz.ErrAlreadyGranted
	}
	cp := *a
	cp.Role = nil
	t.st.assignments[key] = &cp
	return nil
}

func (t *txView) DeleteRoleAssignment(ctx context.Context, principalID, roleID string) error {
	key := pairKey{principalID, roleID}
	if _, ok := t.st.assignments[key]; !ok {
		return authz.ErrNotGranted
	}
	delete(t.st.assignments, key)
	return nil
}

func (t *txView) GetDirectGrant(ctx context.Context, principalID, permissionID string) (*authz.DirectGrant, error) {
	g, ok := t.st.grants[pairKey{principalID, permissionID}]
	if !ok {
		return nil, authz.ErrNotGranted
	}
	cp := *g
	return &cp, nil
}

func (t *txView) InsertDirectGrant(ctx context.Context, g *authz.DirectGrant) error {
	key := pairKey{g.PrincipalID, g.Permission.ID}
	if _, ok := t.st.grants[key]; ok {
		return authz.ErrAlreadyGranted
	}
	cp := *g
	cp.Permission.Conditions = g.Permission.Conditions.Clone()
	t.st.grants[key] = &cp
	return nil
}

func (t *txView) DeleteDirectGrant(ctx context.Context, principalID, permissionID string) error {
	key := pairKey{principalID, permissionID}
	if _, ok := t.st.grants[key]; !ok {
		return authz.ErrNotGranted
	}
	delete(t.st.grants, key)
	return nil
}

func (t *txView) AppendAuditLog(ctx context.Context, entry *audit.Entry) error {
	cp := *entry
	cp.Metadata = maps.Clone(entry.Metadata)
	t.st.audit = append(t.st.audit, &cp)
	return nil
}

// state helpers, shared by the store and its transactions

func (s *state) getPermission(resource string, action authz.Action) (*authz.Permission, error) {
	id, ok := s.permByKey[authz.CatalogEntry{Resource: resource, Action: action}]
	if !ok {
		return nil, authz.ErrUnknownPermission
	}
	cp := *s.permissions[id]
	return &cp, nil
}

func (s *state) listPermissions() []*authz.Permission {
	out := make([]*authz.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		cp := *p
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *authz.Permission) int {
		return cmp.Or(cmp.Compare(a.Resource, b.Resource), cmp.Compare(a.Action.Level(), b.Action.Level()))
	})
	return out
}

func (s *state) getRole(id string) (*authz.Role, error) {
	r, ok := s.roles[id]
	if !ok {
		return nil, authz.ErrRoleNotFound
	}
	return s.roleWithPermissions(r), nil
}

func (s *state) findRoleByName(tenantID, name string) (*authz.Role, error) {
	id, ok := s.roleByName[roleKey{tenantID: tenantID, name: name}]
	if !ok {
		return nil, authz.ErrRoleNotFound
	}
	return s.getRole(id)
}

func (s *state) listRoles(tenantID string) []*authz.Role {
	var out []*authz.Role
	for _, r := range s.roles {
		if r.TenantID == tenantID {
			out = append(out, s.roleWithPermissions(r))
		}
	}
	slices.SortFunc(out, func(a, b *authz.Role) int {
		return cmp.Or(cmp.Compare(b.Level, a.Level), cmp.Compare(a.Name, b.Name))
	})
	return out
}

func (s *state) roleWithPermissions(r *authz.Role) *authz.Role {
	cp := *r
	cp.Permissions = make([]authz.Permission, 0, len(s.links[r.ID]))
	for _, l := range s.links[r.ID] {
		p, ok := s.permissions[l.permissionID]
		if !ok {
			continue
		}
		perm := *p
		perm.Conditions = l.conditions.Clone()
		cp.Permissions = append(cp.Permissions, perm)
	}
	return &cp
}

func copyUser(u *identity.User) *identity.User {
	cp := *u
	cp.BranchIDs = slices.Clone(u.BranchIDs)
	cp.DepartmentIDs = slices.Clone(u.DepartmentIDs)
	return &cp
}
