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
	"fmt"
	"regexp"
)

// -----------------------------------------------------------------------------
// Resource Constants
// The default vocabulary seeded into every catalog.
// -----------------------------------------------------------------------------

const (
	ResourceAppointments  = "APPOINTMENTS"
	ResourceServices      = "SERVICES"
	ResourceStaff         = "STAFF"
	ResourceCustomers     = "CUSTOMERS"
	ResourceInventory     = "INVENTORY"
	ResourcePayments      = "PAYMENTS"
	ResourceReports       = "REPORTS"
	ResourceBranches      = "BRANCHES"
	ResourceSettings      = "SETTINGS"
	ResourceRoles         = "ROLES"
	ResourceUsers         = "USERS"
	ResourceNotifications = "NOTIFICATIONS"
)

// DefaultResources lists the resources of the default catalog.
var DefaultResources = []string{
	ResourceAppointments,
	ResourceServices,
	ResourceStaff,
	ResourceCustomers,
	ResourceInventory,
	ResourcePayments,
	ResourceReports,
	ResourceBranches,
	ResourceSettings,
	ResourceRoles,
	ResourceUsers,
	ResourceNotifications,
}

// CatalogEntry is a (resource, action) pair of the vocabulary.
type CatalogEntry struct {
	Resource string
	Action   Action
}

// DefaultCatalog returns every default resource crossed with every action.
func DefaultCatalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(DefaultResources)*len(Actions))
	for _, r := range DefaultResources {
		for _, a := range Actions {
			entries = append(entries, CatalogEntry{Resource: r, Action: a})
		}
	}
	return entries
}

var resourcePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// ValidateResource checks the shape of a resource name. New resources can be
// added to the catalog at any time as long as they follow it.
func ValidateResource(resource string) error {
	if !resourcePattern.MatchString(resource) {
		return fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
	return nil
}

// ValidateEntry checks both halves of a catalog pair.
func ValidateEntry(resource string, action Action) error {
	if err := ValidateResource(resource); err != nil {
		return err
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return nil
}
