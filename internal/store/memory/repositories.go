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
	"slices"
	"strings"
	"time"

	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/tenant"
)

// update applies fn to a private copy of the state and publishes it.
func (s *Store) update(fn func(st *state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	work := s.read().clone()
	if err := fn(work); err != nil {
		return err
	}
	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// UserRepository implements identity.UserRepository on the shared store
type UserRepository struct {
	s *Store
}

// Users returns the principal repository backed by s
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	return r.s.update(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return identity.ErrUserAlreadyExists
		}
		for _, u := range st.users {
			if u.TenantID == user.TenantID && strings.EqualFold(u.Email, user.Email) {
				return identity.ErrUserAlreadyExists
			}
		}
		st.users[user.ID] = copyUser(user)
		return nil
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	u, ok := r.s.read().users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*identity.User, error) {
	for _, u := range r.s.read().users {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return r.s.update(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return identity.ErrUserNotFound
		}
		cp := copyUser(u)
		cp.Active = active
		cp.UpdatedAt = at
		if active {
			cp.DeactivatedAt = nil
		} else {
			cp.DeactivatedAt = &at
		}
		st.users[id] = cp
		return nil
	})
}

func (r *UserRepository) SetBranches(ctx context.Context, id string, branchIDs []string) error {
	return r.s.update(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return identity.ErrUserNotFound
		}
		cp := copyUser(u)
		cp.BranchIDs = slices.Clone(branchIDs)
		cp.UpdatedAt = time.Now()
		st.users[id] = cp
		return nil
	})
}

// TenantRepository implements tenant.Repository on the shared store
type TenantRepository struct {
	s *Store
}

// Tenants returns the tenant repository backed by s
func (s *Store) Tenants() *TenantRepository {
	return &TenantRepository{s: s}
}

func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	return r.s.update(func(st *state) error {
		if _, ok := st.tenants[t.ID]; ok {
			return tenant.ErrTenantAlreadyExists
		}
		for _, existing := range st.tenants {
			if existing.Name == t.Name {
				return tenant.ErrTenantAlreadyExists
			}
		}
		cp := *t
		st.tenants[t.ID] = &cp
		return nil
	})
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, ok := r.s.read().tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TenantRepository) GetByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	for _, t := range r.s.read().tenants {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	all := make([]*tenant.Tenant, 0)
	for _, t := range r.s.read().tenants {
		cp := *t
		all = append(all, &cp)
	}
	slices.SortFunc(all, func(a, b *tenant.Tenant) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if offset >= len(all) {
		return []*tenant.Tenant{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
