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

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names for roles stored in the database.
// -----------------------------------------------------------------------------

const (
	// RoleSuperAdmin is the platform-wide administrator role.
	// Scope: Global (no tenant)
	// Permissions: all, via the SuperAdmin tag rather than catalog links
	RoleSuperAdmin = "SUPER_ADMIN"

	// RoleSalonOwner has full control of one tenant.
	RoleSalonOwner = "SALON_OWNER"

	// RoleSalonManager runs day-to-day operations of a tenant.
	RoleSalonManager = "SALON_MANAGER"

	// RoleReceptionist handles the front desk.
	RoleReceptionist = "RECEPTIONIST"

	// RoleStaff is a stylist or therapist.
	RoleStaff = "STAFF"

	// RoleCustomer is an end customer of a salon.
	RoleCustomer = "CUSTOMER"
)

// -----------------------------------------------------------------------------
// Role Levels
// Informational hierarchy used by tooling and by the escalation guard in
// AdminService. Never consulted by Authorize.
// -----------------------------------------------------------------------------

const (
	LevelSuperAdmin   = 100
	LevelSalonOwner   = 80
	LevelSalonManager = 60
	LevelReceptionist = 40
	LevelStaff        = 30
	LevelCustomer     = 10
)

// RoleTemplate describes a default role seeded into every tenant.
type RoleTemplate struct {
	Name        string
	Description string
	Level       int
	Permissions []CatalogEntry
}

func manageAll(resources ...string) []CatalogEntry {
	return grantAll(ActionManage, resources...)
}

func grantAll(action Action, resources ...string) []CatalogEntry {
	out := make([]CatalogEntry, 0, len(resources))
	for _, r := range resources {
		out = append(out, CatalogEntry{Resource: r, Action: action})
	}
	return out
}

func concat(groups ...[]CatalogEntry) []CatalogEntry {
	var out []CatalogEntry
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// SuperAdminTemplate is the single global role.
var SuperAdminTemplate = RoleTemplate{
	Name:        RoleSuperAdmin,
	Description: "Platform administrator with unrestricted access",
	Level:       LevelSuperAdmin,
}

// DefaultTenantRoles defines the roles and permission links seeded into
// every tenant. Holding MANAGE implies every lower action on that resource,
// so only the highest action per resource is linked.
var DefaultTenantRoles = []RoleTemplate{
	{
		Name:        RoleSalonOwner,
		Description: "Owner of the salon with full tenant control",
		Level:       LevelSalonOwner,
		Permissions: manageAll(DefaultResources...),
	},
	{
		Name:        RoleSalonManager,
		Description: "Manages daily salon operations",
		Level:       LevelSalonManager,
		Permissions: concat(
			manageAll(ResourceAppointments, ResourceServices, ResourceStaff, ResourceCustomers, ResourceInventory, ResourceNotifications),
			grantAll(ActionWrite, ResourcePayments),
			grantAll(ActionRead, ResourceReports, ResourceBranches, ResourceUsers, ResourceRoles),
		),
	},
	{
		Name:        RoleReceptionist,
		Description: "Front desk: bookings, check-in and payments",
		Level:       LevelReceptionist,
		Permissions: concat(
			manageAll(ResourceAppointments),
			grantAll(ActionWrite, ResourceCustomers, ResourcePayments),
			grantAll(ActionRead, ResourceServices, ResourceStaff, ResourceInventory),
		),
	},
	{
		Name:        RoleStaff,
		Description: "Service provider working appointments",
		Level:       LevelStaff,
		Permissions: concat(
			manageAll(ResourceAppointments),
			grantAll(ActionRead, ResourceServices, ResourceCustomers),
		),
	},
	{
		Name:        RoleCustomer,
		Description: "Salon customer; own appointments are reached through ownership",
		Level:       LevelCustomer,
		Permissions: grantAll(ActionRead, ResourceServices, ResourceStaff, ResourceBranches),
	},
}
