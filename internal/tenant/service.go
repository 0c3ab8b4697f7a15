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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
)

// Service provides tenant management and bootstrap logic
type Service struct {
	repo        Repository
	store       authz.Store
	admin       *authz.AdminService
	principals  *identity.Service
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new tenant service
func NewService(
	repo Repository,
	store authz.Store,
	admin *authz.AdminService,
	principals *identity.Service,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		repo:        repo,
		store:       store,
		admin:       admin,
		principals:  principals,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CreateTenant creates a new tenant and seeds its default roles
func (s *Service) CreateTenant(ctx context.Context, name, creatorID string) (*Tenant, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return nil, ErrTenantNameRequired
	}

	existing, err := s.repo.GetByName(ctx, name)
	if err == nil && existing != nil {
		return nil, ErrTenantAlreadyExists
	}
	if err != nil && !errors.Is(err, ErrTenantNotFound) {
		return nil, fmt.Errorf("failed to check existing tenant: %w", err)
	}

	now := s.now()
	tenant := &Tenant{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: tenant.ID,
		ActorID:  creatorID,
		Resource: tenant.ID,
		Metadata: map[string]any{"name": tenant.Name},
	})

	if err := s.InitializeTenantRoles(ctx, tenant.ID); err != nil {
		return nil, err
	}

	return tenant, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTenantByName retrieves a tenant by name
func (s *Service) GetTenantByName(ctx context.Context, name string) (*Tenant, error) {
	return s.repo.GetByName(ctx, name)
}

// ListTenants lists tenants with pagination
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// ListRoles lists the roles defined for a tenant
func (s *Service) ListRoles(ctx context.Context, tenantID string) ([]*authz.Role, error) {
	if _, err := s.repo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx, tenantID)
}
