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

package tenant_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/store/memory"
	"github.com/salonhub/salonhub/internal/tenant"
)

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

type env struct {
	ctx    context.Context
	store  *memory.Store
	svc    *tenant.Service
	authz  *authz.Service
	audit  *mockAudit
	idents *identity.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	auditLogger := new(mockAudit)
	auditLogger.On("Log", mock.Anything, mock.Anything).Maybe()

	idents := identity.NewService(st.Users(), auditLogger)
	admin := authz.NewAdminService(st)
	return &env{
		ctx:    context.Background(),
		store:  st,
		svc:    tenant.NewService(st.Tenants(), st, admin, idents, auditLogger),
		authz:  authz.NewService(st),
		audit:  auditLogger,
		idents: idents,
	}
}

func eventLogged(a *mockAudit, eventType string) bool {
	for _, c := range a.Calls {
		if ev, ok := c.Arguments.Get(1).(audit.Event); ok && ev.Type == eventType {
			return true
		}
	}
	return false
}

// TestPurpose: Validates that tenant creation uses UUIDv7 IDs and seeds default roles.
// Scope: Unit Test
// Security: Traceability and unique identification of tenants
// Expected: A UUIDv7 tenant with every default role, ordered by level.
// Test Case ID: TEN-01
func TestTenant_Service_CreateTenant_SeedsRoles(t *testing.T) {
	e := newEnv(t)

	created, err := e.svc.CreateTenant(e.ctx, "  Glow Studio ", "user-123")
	require.NoError(t, err)
	assert.Equal(t, "Glow Studio", created.Name)
	assert.Equal(t, tenant.StatusActive, created.Status)

	uid, err := uuid.Parse(created.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), uid.Version())

	roles, err := e.svc.ListRoles(e.ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, roles, len(authz.DefaultTenantRoles))
	assert.Equal(t, authz.RoleSalonOwner, roles[0].Name)
	assert.Equal(t, authz.RoleCustomer, roles[len(roles)-1].Name)
	for _, r := range roles {
		assert.Equal(t, created.ID, r.TenantID)
		assert.False(t, r.SuperAdmin)
		assert.NotEmpty(t, r.Permissions, r.Name)
	}

	assert.True(t, eventLogged(e.audit, audit.TypeTenantCreated))
	assert.True(t, eventLogged(e.audit, audit.TypeTenantBootstrapped))
}

func TestTenant_Service_CreateTenant_Validation(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.CreateTenant(e.ctx, "   ", "user-123")
	assert.ErrorIs(t, err, tenant.ErrTenantNameRequired)

	_, err = e.svc.CreateTenant(e.ctx, "Glow", "user-123")
	require.NoError(t, err)
	_, err = e.svc.CreateTenant(e.ctx, "Glow", "user-123")
	assert.ErrorIs(t, err, tenant.ErrTenantAlreadyExists)

	_, err = e.svc.ListRoles(e.ctx, "missing")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

// TestPurpose: Validates idempotent re-bootstrap of a tenant.
// Scope: Unit Test
// Security: Re-running never duplicates rows or resets operator customizations
// Expected: Catalog, role and link counts are unchanged by a second run; a custom link survives.
// Test Case ID: TEN-02
func TestTenant_InitializeTenantRoles_Idempotent(t *testing.T) {
	e := newEnv(t)
	created, err := e.svc.CreateTenant(e.ctx, "Glow", "user-123")
	require.NoError(t, err)

	perms, roles, links := e.store.Counts()
	assert.Equal(t, len(authz.DefaultCatalog()), perms)
	assert.Equal(t, len(authz.DefaultTenantRoles), roles)

	require.NoError(t, e.svc.InitializeTenantRoles(e.ctx, created.ID))
	p2, r2, l2 := e.store.Counts()
	assert.Equal(t, []int{perms, roles, links}, []int{p2, r2, l2})

	staff, err := e.store.FindRoleByName(e.ctx, created.ID, authz.RoleStaff)
	require.NoError(t, err)
	inventory, err := e.store.GetPermission(e.ctx, authz.ResourceInventory, authz.ActionRead)
	require.NoError(t, err)
	require.NoError(t, e.store.WithinTx(e.ctx, func(tx authz.Tx) error {
		return tx.LinkRolePermission(e.ctx, staff.ID, inventory.ID, nil)
	}))

	require.NoError(t, e.svc.InitializeTenantRoles(e.ctx, created.ID))
	p3, r3, l3 := e.store.Counts()
	assert.Equal(t, []int{perms, roles, links + 1}, []int{p3, r3, l3})
}

func TestTenant_InitializeTenantRoles_UnknownTenant(t *testing.T) {
	e := newEnv(t)
	err := e.svc.InitializeTenantRoles(e.ctx, "missing")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	p, r, l := e.store.Counts()
	assert.Zero(t, p+r+l)
}

// TestPurpose: Validates that two tenants get independent role sets sharing one catalog.
// Scope: Unit Test
// Security: Tenant isolation of roles
// Expected: Roles are per tenant; catalog rows are shared.
// Test Case ID: TEN-03
func TestTenant_RolesArePerTenant(t *testing.T) {
	e := newEnv(t)
	a, err := e.svc.CreateTenant(e.ctx, "A", "user-123")
	require.NoError(t, err)
	b, err := e.svc.CreateTenant(e.ctx, "B", "user-123")
	require.NoError(t, err)

	ra, err := e.store.FindRoleByName(e.ctx, a.ID, authz.RoleStaff)
	require.NoError(t, err)
	rb, err := e.store.FindRoleByName(e.ctx, b.ID, authz.RoleStaff)
	require.NoError(t, err)
	assert.NotEqual(t, ra.ID, rb.ID)

	perms, roles, _ := e.store.Counts()
	assert.Equal(t, len(authz.DefaultCatalog()), perms)
	assert.Equal(t, 2*len(authz.DefaultTenantRoles), roles)
}

// TestPurpose: Validates the env-driven super admin bootstrap.
// Scope: Unit Test
// Security: Exactly one initial super admin, created once
// Expected: The principal is created in the platform tenant and holds SUPER_ADMIN; re-runs are no-ops.
// Test Case ID: TEN-04
func TestTenant_BootstrapSuperAdmin(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.svc.BootstrapSuperAdmin(e.ctx, tenant.BootstrapConfig{}))
	_, err := e.store.FindRoleByName(e.ctx, "", authz.RoleSuperAdmin)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)

	cfg := tenant.BootstrapConfig{Email: "Root@Salonhub.Example"}
	require.NoError(t, e.svc.BootstrapSuperAdmin(e.ctx, cfg))

	platform, err := e.svc.GetTenantByName(e.ctx, tenant.PlatformTenantName)
	require.NoError(t, err)
	admin, err := e.idents.FindByEmail(e.ctx, platform.ID, "root@salonhub.example")
	require.NoError(t, err)

	ok, err := e.authz.IsSuperAdmin(e.ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, e.authz.Authorize(e.ctx, admin.ID, "ANY_RESOURCE", authz.ActionManage, nil))
	assert.True(t, eventLogged(e.audit, audit.TypeSuperAdminBootstrap))

	entries := e.store.AuditEntries()
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.ActorSystemBootstrap, entries[len(entries)-1].ActorID)

	require.NoError(t, e.svc.BootstrapSuperAdmin(e.ctx, tenant.BootstrapConfig{Email: "other@salonhub.example"}))
	_, err = e.idents.FindByEmail(e.ctx, platform.ID, "other@salonhub.example")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
	assert.Len(t, e.store.AuditEntries(), len(entries))
}

func TestTenant_InitializePlatform_Idempotent(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.svc.InitializePlatform(e.ctx))
	p1, r1, l1 := e.store.Counts()
	require.NoError(t, e.svc.InitializePlatform(e.ctx))
	p2, r2, l2 := e.store.Counts()

	assert.Equal(t, []int{p1, r1, l1}, []int{p2, r2, l2})
	assert.Equal(t, 1, r1)

	role, err := e.store.FindRoleByName(e.ctx, "", authz.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, role.SuperAdmin)
	assert.True(t, role.Global())
	assert.Equal(t, authz.LevelSuperAdmin, role.Level)
}

func TestTenant_ListTenants(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"A", "B", "C"} {
		_, err := e.svc.CreateTenant(e.ctx, name, "user-123")
		require.NoError(t, err)
	}
	all, err := e.svc.ListTenants(e.ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := e.svc.ListTenants(e.ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
