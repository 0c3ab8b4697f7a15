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
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
)

var str = authz.String

// TestPurpose: Validates that an inactive principal is denied every check.
// Scope: Unit Test
// Security: Deactivation overrides every grant, super admin included
// Expected: All resource/action/context combinations deny with principal_inactive.
// Test Case ID: SVC-01
func TestService_InactivePrincipalDenied(t *testing.T) {
	f := newFixture(t, "A")
	owner := f.principal(t, "A", "B1")
	f.assign(t, owner, authz.RoleSalonOwner, nil)
	admin := f.principal(t, "A")
	f.assign(t, admin, authz.RoleSuperAdmin, nil)

	require.True(t, f.svc.Authorize(f.ctx, owner.ID, authz.ResourceReports, authz.ActionRead, nil))
	f.deactivate(t, owner)
	f.deactivate(t, admin)

	contexts := []authz.Attributes{nil, {}, {authz.AttrOwnerID: str(owner.ID)}, {authz.AttrTenantID: str("A")}}
	for _, p := range []*identity.User{owner, admin} {
		for _, r := range authz.DefaultResources {
			for _, a := range authz.Actions {
				for _, c := range contexts {
					d := f.svc.Decide(f.ctx, p.ID, r, a, c)
					assert.False(t, d.Allowed)
					assert.Equal(t, authz.ReasonPrincipalInactive, d.Reason)
				}
			}
		}
	}
}

// TestPurpose: Validates that SUPER_ADMIN is allowed everything.
// Scope: Unit Test
// Security: The global role crosses tenant boundaries
// Expected: Every (resource, action) is allowed, including with a foreign tenant context.
// Test Case ID: SVC-02
func TestService_SuperAdminAllowedEverything(t *testing.T) {
	f := newFixture(t, "A", "B")
	admin := f.principal(t, "A")
	f.assign(t, admin, authz.RoleSuperAdmin, nil)

	for _, r := range append(slices.Clone(authz.DefaultResources), "GIFT_CARDS") {
		for _, a := range authz.Actions {
			assert.True(t, f.svc.Authorize(f.ctx, admin.ID, r, a, nil))
			d := f.svc.Decide(f.ctx, admin.ID, r, a, authz.Attributes{authz.AttrTenantID: str("B"), authz.AttrBranchID: str("X")})
			assert.Equal(t, authz.Decision{Allowed: true, Reason: authz.ReasonSuperAdmin}, d)
		}
	}

	ok, err := f.svc.IsSuperAdmin(f.ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestPurpose: Validates hierarchy monotonicity end to end.
// Scope: Unit Test
// Security: MANAGE implies READ, WRITE and DELETE on the same resource only
// Expected: Lower actions pass; other resources fail.
// Test Case ID: SVC-03
func TestService_ManageImpliesLowerActions(t *testing.T) {
	f := newFixture(t, "A")
	u := f.principal(t, "A")
	f.grant(t, u, authz.ResourceInventory, authz.ActionManage, nil, nil)

	for _, a := range authz.Actions {
		assert.True(t, f.svc.Authorize(f.ctx, u.ID, authz.ResourceInventory, a, nil), a)
	}
	assert.False(t, f.svc.Authorize(f.ctx, u.ID, authz.ResourcePayments, authz.ActionRead, nil))
}

// TestPurpose: Validates the hard tenant boundary.
// Scope: Unit Test
// Security: No ordinary role reaches another tenant
// Expected: A foreign tenantId denies even for SALON_OWNER and the owner escape hatch.
// Test Case ID: SVC-04
func TestService_TenantIsolation(t *testing.T) {
	f := newFixture(t, "A", "B")
	owner := f.principal(t, "A")
	f.assign(t, owner, authz.RoleSalonOwner, nil)

	for _, r := range authz.DefaultResources {
		d := f.svc.Decide(f.ctx, owner.ID, r, authz.ActionRead, authz.Attributes{authz.AttrTenantID: str("B")})
		assert.False(t, d.Allowed)
		assert.Equal(t, authz.ReasonTenantBoundary, d.Reason)
	}
	assert.False(t, f.svc.Authorize(f.ctx, owner.ID, authz.ResourceAppointments, authz.ActionRead,
		authz.Attributes{authz.AttrTenantID: str("B"), authz.AttrOwnerID: str(owner.ID)}))
	assert.True(t, f.svc.Authorize(f.ctx, owner.ID, authz.ResourceAppointments, authz.ActionRead,
		authz.Attributes{authz.AttrTenantID: str("A")}))
}

// TestPurpose: Validates the ownership escape hatch.
// Scope: Unit Test
// Security: Self-access needs no grant; access to others' records does
// Expected: ownerId equal to the principal allows; another owner denies.
// Test Case ID: SVC-05
func TestService_OwnerEscapeHatch(t *testing.T) {
	f := newFixture(t, "A")
	customer := f.principal(t, "A")
	f.assign(t, customer, authz.RoleCustomer, nil)

	d := f.svc.Decide(f.ctx, customer.ID, authz.ResourceAppointments, authz.ActionManage, authz.Attributes{authz.AttrOwnerID: str(customer.ID)})
	assert.Equal(t, authz.Decision{Allowed: true, Reason: authz.ReasonOwner}, d)

	assert.False(t, f.svc.Authorize(f.ctx, customer.ID, authz.ResourceAppointments, authz.ActionRead, authz.Attributes{authz.AttrOwnerID: str("someone-else")}))
	assert.False(t, f.svc.Authorize(f.ctx, customer.ID, authz.ResourceAppointments, authz.ActionRead, nil))
	assert.True(t, f.svc.Authorize(f.ctx, customer.ID, authz.ResourceServices, authz.ActionRead, nil))

	// the tenant boundary is checked before ownership
	d = f.svc.Decide(f.ctx, customer.ID, authz.ResourceAppointments, authz.ActionRead, authz.Attributes{
		authz.AttrOwnerID:  str(customer.ID),
		authz.AttrTenantID: str("B"),
	})
	assert.Equal(t, authz.Decision{Allowed: false, Reason: authz.ReasonTenantBoundary}, d)
}

// TestPurpose: Validates lazy expiry of assignments and direct grants.
// Scope: Unit Test
// Security: Expired grants contribute nothing, with no sweep required
// Expected: A passing check flips to deny once the clock reaches expiresAt.
// Test Case ID: SVC-06
func TestService_ExpiryFlipsDecision(t *testing.T) {
	f := newFixture(t, "A")
	u := f.principal(t, "A")
	f.assign(t, u, authz.RoleStaff, ptr(f.clock.Now().Add(time.Hour)))

	v := f.principal(t, "A")
	f.grant(t, v, authz.ResourceReports, authz.ActionRead, nil, ptr(f.clock.Now().Add(30*time.Minute)))

	assert.True(t, f.svc.Authorize(f.ctx, u.ID, authz.ResourceAppointments, authz.ActionWrite, nil))
	assert.True(t, f.svc.Authorize(f.ctx, v.ID, authz.ResourceReports, authz.ActionRead, nil))

	f.clock.Advance(30 * time.Minute)
	assert.True(t, f.svc.Authorize(f.ctx, u.ID, authz.ResourceAppointments, authz.ActionWrite, nil))
	assert.False(t, f.svc.Authorize(f.ctx, v.ID, authz.ResourceReports, authz.ActionRead, nil))

	f.clock.Advance(30 * time.Minute)
	assert.False(t, f.svc.Authorize(f.ctx, u.ID, authz.ResourceAppointments, authz.ActionWrite, nil))

	perms, err := f.svc.EffectivePermissions(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

// TestPurpose: Validates the STAFF scenario including revocation visibility.
// Scope: Unit Test
// Security: A removed role is reflected on the very next check
// Expected: WRITE on APPOINTMENTS passes, READ on INVENTORY fails; after removal WRITE fails.
// Test Case ID: SVC-07
func TestService_StaffScenario(t *testing.T) {
	f := newFixture(t, "A")
	u1 := f.principal(t, "A")
	f.assign(t, u1, authz.RoleStaff, nil)

	assert.True(t, f.svc.Authorize(f.ctx, u1.ID, authz.ResourceAppointments, authz.ActionWrite, nil))
	assert.False(t, f.svc.Authorize(f.ctx, u1.ID, authz.ResourceInventory, authz.ActionRead, nil))
	assert.False(t, f.svc.Authorize(f.ctx, u1.ID, authz.ResourcePayments, authz.ActionRead, nil))

	require.NoError(t, f.admin.RemoveRole(f.ctx, u1.ID, f.roles["A"][authz.RoleStaff].ID, "system"))
	assert.False(t, f.svc.Authorize(f.ctx, u1.ID, authz.ResourceAppointments, authz.ActionWrite, nil))
}

// TestPurpose: Validates the conditional direct grant scenario.
// Scope: Unit Test
// Security: Conditions apply only when the caller supplies context
// Expected: branchId B1 passes, B2 fails, no context passes.
// Test Case ID: SVC-08
func TestService_ConditionalDirectGrant(t *testing.T) {
	f := newFixture(t, "A")
	// u2 is affiliated with B1 and B2 so only the grant condition decides
	u2 := f.principal(t, "A", "B1", "B2")
	f.grant(t, u2, authz.ResourceReports, authz.ActionRead, authz.Conditions{authz.AttrBranchID: str("B1")}, nil)

	assert.True(t, f.svc.Authorize(f.ctx, u2.ID, authz.ResourceReports, authz.ActionRead, authz.Attributes{authz.AttrBranchID: str("B1")}))

	d := f.svc.Decide(f.ctx, u2.ID, authz.ResourceReports, authz.ActionRead, authz.Attributes{authz.AttrBranchID: str("B2")})
	assert.Equal(t, authz.Decision{Allowed: false, Reason: authz.ReasonConditionMismatch}, d)

	assert.True(t, f.svc.Authorize(f.ctx, u2.ID, authz.ResourceReports, authz.ActionRead, nil))

	// the scenario assumes u2 works in B1; the same grant without that
	// affiliation still fails the branch rule
	u3 := f.principal(t, "A")
	f.grant(t, u3, authz.ResourceReports, authz.ActionRead, authz.Conditions{authz.AttrBranchID: str("B1")}, nil)
	d = f.svc.Decide(f.ctx, u3.ID, authz.ResourceReports, authz.ActionRead, authz.Attributes{authz.AttrBranchID: str("B1")})
	assert.Equal(t, authz.Decision{Allowed: false, Reason: authz.ReasonBranchScope}, d)
}

// TestPurpose: Validates branch scoping of affiliated staff.
// Scope: Unit Test
// Security: Acting on another branch needs unconditional MANAGE on BRANCHES
// Expected: STAFF is confined to its branches; SALON_OWNER is not.
// Test Case ID: SVC-09
func TestService_BranchScope(t *testing.T) {
	f := newFixture(t, "A")
	staff := f.principal(t, "A", "B1")
	f.assign(t, staff, authz.RoleStaff, nil)
	owner := f.principal(t, "A")
	f.assign(t, owner, authz.RoleSalonOwner, nil)

	inB1 := authz.Attributes{authz.AttrBranchID: str("B1")}
	inB2 := authz.Attributes{authz.AttrBranchID: str("B2")}

	assert.True(t, f.svc.Authorize(f.ctx, staff.ID, authz.ResourceAppointments, authz.ActionWrite, inB1))
	d := f.svc.Decide(f.ctx, staff.ID, authz.ResourceAppointments, authz.ActionWrite, inB2)
	assert.Equal(t, authz.ReasonBranchScope, d.Reason)
	assert.True(t, f.svc.Authorize(f.ctx, owner.ID, authz.ResourceAppointments, authz.ActionWrite, inB2))
}

// TestPurpose: Validates fail-closed behaviour for unknown principals and bad input.
// Scope: Unit Test
// Security: Missing principals and malformed requests never allow
// Expected: Deny with principal_not_found, invalid_request or malformed_context.
// Test Case ID: SVC-10
func TestService_FailClosedOnBadInput(t *testing.T) {
	f := newFixture(t, "A")
	u := f.principal(t, "A")
	f.assign(t, u, authz.RoleSalonOwner, nil)

	assert.Equal(t, authz.ReasonPrincipalNotFound, f.svc.Decide(f.ctx, "ghost", authz.ResourceReports, authz.ActionRead, nil).Reason)
	assert.Equal(t, authz.ReasonInvalidRequest, f.svc.Decide(f.ctx, u.ID, authz.ResourceReports, "read", nil).Reason)
	assert.Equal(t, authz.ReasonInvalidRequest, f.svc.Decide(f.ctx, u.ID, "", authz.ActionRead, nil).Reason)
	assert.Equal(t, authz.ReasonMalformedContext, f.svc.Decide(f.ctx, u.ID, authz.ResourceReports, authz.ActionRead,
		authz.Attributes{authz.AttrBranchID: authz.Number(1)}).Reason)

	_, err := f.svc.EffectivePermissions(f.ctx, "ghost")
	assert.ErrorIs(t, err, authz.ErrPrincipalNotFound)
}

type failingReader struct {
	authz.Reader
	err error
}

func (r failingReader) ListDirectGrants(ctx context.Context, principalID string) ([]*authz.DirectGrant, error) {
	return nil, r.err
}

// TestPurpose: Validates that store failures and cancellation deny.
// Scope: Unit Test
// Security: A partial read is never treated as a partial grant
// Expected: A failing grant read denies with store_error; a canceled context denies with canceled.
// Test Case ID: SVC-11
func TestService_StoreFailureDenies(t *testing.T) {
	f := newFixture(t, "A")
	u := f.principal(t, "A")
	f.assign(t, u, authz.RoleSalonOwner, nil)

	broken := authz.NewService(failingReader{Reader: f.store, err: errors.New("connection reset")})
	d := broken.Decide(f.ctx, u.ID, authz.ResourceReports, authz.ActionRead, nil)
	assert.Equal(t, authz.Decision{Allowed: false, Reason: authz.ReasonStoreError}, d)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	d = f.svc.Decide(ctx, u.ID, authz.ResourceReports, authz.ActionRead, nil)
	assert.Equal(t, authz.Decision{Allowed: false, Reason: authz.ReasonCanceled}, d)

	ctx, cancel = context.WithDeadline(f.ctx, time.Now().Add(-time.Second))
	defer cancel()
	assert.False(t, f.svc.Authorize(ctx, u.ID, authz.ResourceReports, authz.ActionRead, nil))
}

// TestPurpose: Validates that roles of another tenant are ignored.
// Scope: Unit Test
// Security: Assignments never cross tenant boundaries
// Expected: A drifted cross-tenant assignment grants nothing.
// Test Case ID: SVC-12
func TestService_CrossTenantAssignmentIgnored(t *testing.T) {
	f := newFixture(t, "A", "B")
	u := f.principal(t, "A")

	err := f.store.WithinTx(f.ctx, func(tx authz.Tx) error {
		return tx.InsertRoleAssignment(f.ctx, &authz.RoleAssignment{
			ID:          "drift",
			PrincipalID: u.ID,
			RoleID:      f.roles["B"][authz.RoleSalonOwner].ID,
			GrantedBy:   "system",
			GrantedAt:   f.clock.Now(),
		})
	})
	require.NoError(t, err)

	assert.False(t, f.svc.Authorize(f.ctx, u.ID, authz.ResourceReports, authz.ActionRead, nil))
	roles, err := f.svc.GetUserRoles(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestService_EffectivePermissionsAndRoles(t *testing.T) {
	f := newFixture(t, "A")
	u := f.principal(t, "A")
	f.assign(t, u, authz.RoleStaff, nil)
	f.assign(t, u, authz.RoleReceptionist, nil)
	f.grant(t, u, authz.ResourceReports, authz.ActionRead, authz.Conditions{authz.AttrBranchID: str("B1")}, nil)

	perms, err := f.svc.EffectivePermissions(f.ctx, u.ID)
	require.NoError(t, err)

	seen := make(map[authz.CatalogEntry]int)
	for _, p := range perms {
		seen[authz.CatalogEntry{Resource: p.Resource, Action: p.Action}]++
	}
	for entry, n := range seen {
		assert.Equal(t, 1, n, "%v duplicated", entry)
	}
	assert.Contains(t, seen, authz.CatalogEntry{Resource: authz.ResourceAppointments, Action: authz.ActionManage})
	assert.Contains(t, seen, authz.CatalogEntry{Resource: authz.ResourcePayments, Action: authz.ActionWrite})
	assert.Contains(t, seen, authz.CatalogEntry{Resource: authz.ResourceReports, Action: authz.ActionRead})

	roles, err := f.svc.GetUserRoles(f.ctx, u.ID)
	require.NoError(t, err)
	names := []string{}
	for _, r := range roles {
		names = append(names, r.Name)
		assert.Empty(t, r.Permissions)
	}
	assert.ElementsMatch(t, []string{authz.RoleStaff, authz.RoleReceptionist}, names)

	f.deactivate(t, u)
	perms, err = f.svc.EffectivePermissions(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

// TestPurpose: Validates that concurrent checks are independent and consistent.
// Scope: Unit Test
// Security: The decision path holds no shared mutable state
// Expected: Parallel checks for different principals all return their expected result.
// Test Case ID: SVC-13
func TestService_ConcurrentChecks(t *testing.T) {
	f := newFixture(t, "A", "B")
	staff := f.principal(t, "A")
	f.assign(t, staff, authz.RoleStaff, nil)
	customer := f.principal(t, "B")
	f.assign(t, customer, authz.RoleCustomer, nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.True(t, f.svc.Authorize(f.ctx, staff.ID, authz.ResourceAppointments, authz.ActionDelete, nil))
		}()
		go func() {
			defer wg.Done()
			assert.False(t, f.svc.Authorize(f.ctx, customer.ID, authz.ResourceAppointments, authz.ActionDelete, nil))
		}()
	}
	wg.Wait()
}
