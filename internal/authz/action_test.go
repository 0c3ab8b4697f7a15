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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the total order READ < WRITE < DELETE < MANAGE.
// Scope: Unit Test
// Security: A held action must authorize every lower action and nothing higher
// Expected: Satisfies is true exactly when the held level is at least the required level.
// Test Case ID: ACT-01
func TestAction_Satisfies(t *testing.T) {
	for i, held := range Actions {
		for j, required := range Actions {
			assert.Equal(t, i >= j, held.Satisfies(required), "%s satisfies %s", held, required)
		}
	}
}

// TestPurpose: Validates that MANAGE implies every other action.
// Scope: Unit Test
// Security: Hierarchy monotonicity
// Expected: MANAGE satisfies READ, WRITE and DELETE.
// Test Case ID: ACT-02
func TestAction_ManageImpliesAll(t *testing.T) {
	assert.True(t, ActionManage.Satisfies(ActionRead))
	assert.True(t, ActionManage.Satisfies(ActionWrite))
	assert.True(t, ActionManage.Satisfies(ActionDelete))
	assert.False(t, ActionRead.Satisfies(ActionManage))
}

// TestPurpose: Validates that unknown or differently cased actions never compare.
// Scope: Unit Test
// Security: No case-insensitive comparison may widen access
// Expected: Unknown actions satisfy nothing and are satisfied by nothing.
// Test Case ID: ACT-03
func TestAction_UnknownNeverSatisfies(t *testing.T) {
	for _, a := range []Action{"", "read", "Manage", "ADMIN"} {
		assert.False(t, a.Valid())
		assert.False(t, a.Satisfies(ActionRead), "held %q", a)
		assert.False(t, ActionManage.Satisfies(a), "required %q", a)
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("DELETE")
	require.NoError(t, err)
	assert.Equal(t, ActionDelete, a)

	_, err = ParseAction("delete")
	assert.ErrorIs(t, err, ErrInvalidAction)

	var decoded Action
	assert.Error(t, json.Unmarshal([]byte(`"OWN"`), &decoded))
	require.NoError(t, json.Unmarshal([]byte(`"WRITE"`), &decoded))
	assert.Equal(t, ActionWrite, decoded)
}

func TestValidateEntry(t *testing.T) {
	assert.NoError(t, ValidateEntry(ResourceAppointments, ActionRead))
	assert.NoError(t, ValidateEntry("GIFT_CARDS", ActionManage))
	assert.ErrorIs(t, ValidateEntry("appointments", ActionRead), ErrInvalidResource)
	assert.ErrorIs(t, ValidateEntry("", ActionRead), ErrInvalidResource)
	assert.ErrorIs(t, ValidateEntry(ResourceAppointments, "OWN"), ErrInvalidAction)
}

// TestPurpose: Validates the default catalog and role templates.
// Scope: Unit Test
// Security: Default roles may only reference catalog entries
// Expected: 48 catalog rows; every template permission is in the catalog.
// Test Case ID: ACT-04
func TestDefaultCatalog_CoversTemplates(t *testing.T) {
	catalog := DefaultCatalog()
	assert.Len(t, catalog, len(DefaultResources)*4)

	known := make(map[CatalogEntry]bool, len(catalog))
	for _, e := range catalog {
		known[e] = true
	}
	for _, tmpl := range DefaultTenantRoles {
		assert.NotEmpty(t, tmpl.Permissions, tmpl.Name)
		assert.Less(t, tmpl.Level, LevelSuperAdmin, tmpl.Name)
		for _, e := range tmpl.Permissions {
			assert.True(t, known[e], "%s references %s:%s", tmpl.Name, e.Resource, e.Action)
		}
	}
}
