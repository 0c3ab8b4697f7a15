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

package identity

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Domain errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrTenantRequired    = errors.New("tenant id is required")
)

// User is an authenticated principal. Accounts are deactivated, never deleted.
type User struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"` // Always required. SUPER_ADMIN is a role assignment, not a tenant property.
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name,omitempty"`
	Active        bool       `json:"active"`
	BranchIDs     []string   `json:"branch_ids,omitempty"`
	DepartmentIDs []string   `json:"department_ids,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// InBranch reports whether the user is affiliated with the branch.
func (u *User) InBranch(branchID string) bool {
	return slices.Contains(u.BranchIDs, branchID)
}

// UserRepository defines the interface for principal persistence
type UserRepository interface {
	// Create creates a new principal
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a principal by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a principal by email within a tenant
	GetByEmail(ctx context.Context, tenantID, email string) (*User, error)

	// SetActive flips the active flag
	SetActive(ctx context.Context, id string, active bool, at time.Time) error

	// SetBranches replaces the branch affiliations
	SetBranches(ctx context.Context, id string, branchIDs []string) error
}
