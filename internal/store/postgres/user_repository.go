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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/salonhub/salonhub/internal/identity"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new principal repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const principalColumns = `id, tenant_id, email, display_name, active, branch_ids, department_ids,
		created_at, updated_at, deactivated_at`

// Create creates a new principal
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO principals (
			id, tenant_id, email, display_name, active, branch_ids, department_ids,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID, user.TenantID, user.Email, user.DisplayName, user.Active,
		nonNil(user.BranchIDs), nonNil(user.DepartmentIDs),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert principal: %w", err)
	}
	return nil
}

// GetByID retrieves a principal by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return scanPrincipal(r.db.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = $1`, id))
}

// GetByEmail retrieves a principal by email within a tenant
func (r *UserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*identity.User, error) {
	return scanPrincipal(r.db.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE tenant_id = $1 AND lower(email) = $2`,
		tenantID, strings.ToLower(email)))
}

// SetActive flips the active flag
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	var deactivatedAt *time.Time
	if !active {
		deactivatedAt = &at
	}
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE principals SET active = $2, deactivated_at = $3, updated_at = $4 WHERE id = $1
	`, id, active, deactivatedAt, at)
	if err != nil {
		return fmt.Errorf("failed to update principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// SetBranches replaces the branch affiliations
func (r *UserRepository) SetBranches(ctx context.Context, id string, branchIDs []string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE principals SET branch_ids = $2, updated_at = NOW() WHERE id = $1
	`, id, nonNil(branchIDs))
	if err != nil {
		return fmt.Errorf("failed to update branches: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (*identity.User, error) {
	var u identity.User
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &u.Active,
		&u.BranchIDs, &u.DepartmentIDs,
		&u.CreatedAt, &u.UpdatedAt, &u.DeactivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan principal: %w", err)
	}
	return &u, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
