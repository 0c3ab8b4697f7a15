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

package authz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx   context.Context
	store *memory.Store
	clock *fakeClock
	svc   *authz.Service
	admin *authz.AdminService
	roles map[string]map[string]*authz.Role // tenant -> name -> role
	super *authz.Role
}

func newFixture(t *testing.T, tenants ...string) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.New(),
		clock: &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		roles: make(map[string]map[string]*authz.Role),
	}
	f.svc = authz.NewService(f.store, authz.WithClock(f.clock.Now))
	f.admin = authz.NewAdminService(f.store, authz.WithClock(f.clock.Now))

	err := f.store.WithinTx(f.ctx, func(tx authz.Tx) error {
		catalog := make(map[authz.CatalogEntry]*authz.Permission)
		for _, e := range authz.DefaultCatalog() {
			p, err := tx.UpsertPermission(f.ctx, e.Resource, e.Action)
			if err != nil {
				return err
			}
			catalog[e] = p
		}
		super, err := tx.UpsertRole(f.ctx, "", authz.RoleSuperAdmin, "", authz.LevelSuperAdmin, true)
		if err != nil {
			return err
		}
		f.super = super
		for _, tenantID := range tenants {
			f.roles[tenantID] = make(map[string]*authz.Role)
			for _, tmpl := range authz.DefaultTenantRoles {
				role, err := tx.UpsertRole(f.ctx, tenantID, tmpl.Name, tmpl.Description, tmpl.Level, false)
				if err != nil {
					return err
				}
				for _, e := range tmpl.Permissions {
					if err := tx.LinkRolePermission(f.ctx, role.ID, catalog[e].ID, nil); err != nil {
						return err
					}
				}
				f.roles[tenantID][tmpl.Name] = role
			}
		}
		return nil
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) principal(t *testing.T, tenantID string, branches ...string) *identity.User {
	t.Helper()
	u := &identity.User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TenantID:  tenantID,
		Email:     uuid.NewString() + "@example.com",
		Active:    true,
		BranchIDs: branches,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) assign(t *testing.T, u *identity.User, roleName string, expiresAt *time.Time) *authz.RoleAssignment {
	t.Helper()
	role := f.super
	if roleName != authz.RoleSuperAdmin {
		role = f.roles[u.TenantID][roleName]
		require.NotNil(t, role, "role %s in tenant %s", roleName, u.TenantID)
	}
	a, err := f.admin.AssignRole(f.ctx, authz.AssignRoleInput{
		PrincipalID: u.ID,
		RoleID:      role.ID,
		ActorID:     audit.ActorSystem,
		ExpiresAt:   expiresAt,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) grant(t *testing.T, u *identity.User, resource string, action authz.Action, cond authz.Conditions, expiresAt *time.Time) {
	t.Helper()
	_, err := f.admin.GrantPermission(f.ctx, authz.GrantPermissionInput{
		PrincipalID: u.ID,
		Resource:    resource,
		Action:      action,
		Conditions:  cond,
		ActorID:     audit.ActorSystem,
		ExpiresAt:   expiresAt,
	})
	require.NoError(t, err)
}

func (f *fixture) deactivate(t *testing.T, u *identity.User) {
	t.Helper()
	require.NoError(t, f.store.Users().SetActive(f.ctx, u.ID, false, f.clock.Now()))
}

func ptr[T any](v T) *T { return &v }
