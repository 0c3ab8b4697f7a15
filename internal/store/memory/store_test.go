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

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
)

// TestPurpose: Validates that a failed transaction leaves no trace.
// Scope: Unit Test
// Security: Audit Integrity (mutation and audit entry commit together)
// Expected: Role, assignment and audit entry written before the error are all discarded.
// Test Case ID: MEM-01
func TestWithinTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	st := New()
	boom := errors.New("boom")

	err := st.WithinTx(ctx, func(tx authz.Tx) error {
		role, err := tx.UpsertRole(ctx, "t1", authz.RoleStaff, "", authz.LevelStaff, false)
		require.NoError(t, err)
		require.NoError(t, tx.InsertRoleAssignment(ctx, &authz.RoleAssignment{ID: "a1", PrincipalID: "p1", RoleID: role.ID}))
		require.NoError(t, tx.AppendAuditLog(ctx, audit.NewEntry("t1", "actor", audit.ActionAssignRole, "p1", authz.ResourceRoles, nil, time.Now())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.FindRoleByName(ctx, "t1", authz.RoleStaff)
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)
	assignments, err := st.ListRoleAssignments(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.Empty(t, st.AuditEntries())
}

// TestPurpose: Validates the housekeeping sweep of expired rows.
// Scope: Unit Test
// Security: Least Privilege (expired grants removed from storage)
// Expected: Only rows whose expiry is at or before now are deleted; permanent rows stay.
// Test Case ID: MEM-02
func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	st := New()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, st.WithinTx(ctx, func(tx authz.Tx) error {
		staff, err := tx.UpsertRole(ctx, "t1", authz.RoleStaff, "", authz.LevelStaff, false)
		require.NoError(t, err)
		perm, err := tx.UpsertPermission(ctx, authz.ResourceReports, authz.ActionRead)
		require.NoError(t, err)

		require.NoError(t, tx.InsertRoleAssignment(ctx, &authz.RoleAssignment{ID: "a1", PrincipalID: "p1", RoleID: staff.ID, ExpiresAt: &past}))
		require.NoError(t, tx.InsertRoleAssignment(ctx, &authz.RoleAssignment{ID: "a2", PrincipalID: "p2", RoleID: staff.ID}))
		require.NoError(t, tx.InsertDirectGrant(ctx, &authz.DirectGrant{ID: "g1", PrincipalID: "p1", Permission: *perm, ExpiresAt: &past}))
		require.NoError(t, tx.InsertDirectGrant(ctx, &authz.DirectGrant{ID: "g2", PrincipalID: "p2", Permission: *perm, ExpiresAt: &future}))
		return nil
	}))

	n, err := st.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	p1Roles, _ := st.ListRoleAssignments(ctx, "p1")
	p1Grants, _ := st.ListDirectGrants(ctx, "p1")
	p2Roles, _ := st.ListRoleAssignments(ctx, "p2")
	p2Grants, _ := st.ListDirectGrants(ctx, "p2")
	assert.Empty(t, p1Roles)
	assert.Empty(t, p1Grants)
	assert.Len(t, p2Roles, 1)
	assert.Len(t, p2Grants, 1)

	n, err = st.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestPurpose: Validates that a canceled context aborts a transaction before it starts.
// Scope: Unit Test
// Security: Fail Closed
// Expected: context.Canceled is returned and fn never runs.
// Test Case ID: MEM-03
func TestWithinTx_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().WithinTx(ctx, func(tx authz.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
