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
	"log/slog"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
)

// seedCatalog upserts the default (resource, action) vocabulary and returns
// the stored rows keyed by pair.
func seedCatalog(ctx context.Context, tx authz.Tx) (map[authz.CatalogEntry]*authz.Permission, error) {
	catalog := make(map[authz.CatalogEntry]*authz.Permission)
	for _, e := range authz.DefaultCatalog() {
		p, err := tx.UpsertPermission(ctx, e.Resource, e.Action)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert permission %s:%s: %w", e.Resource, e.Action, err)
		}
		catalog[e] = p
	}
	return catalog, nil
}

// InitializePlatform seeds the catalog and the global SUPER_ADMIN role. Safe
// to run on every start.
func (s *Service) InitializePlatform(ctx context.Context) error {
	err := s.store.WithinTx(ctx, func(tx authz.Tx) error {
		if _, err := seedCatalog(ctx, tx); err != nil {
			return err
		}
		t := authz.SuperAdminTemplate
		if _, err := tx.UpsertRole(ctx, "", t.Name, t.Description, t.Level, true); err != nil {
			return fmt.Errorf("failed to upsert %s role: %w", t.Name, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize platform: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypePlatformBootstrapped,
		ActorID: audit.ActorSystemBootstrap,
	})
	return nil
}

// InitializeTenantRoles ensures the catalog holds the default vocabulary and
// that the tenant has every default role wired to its permission subset.
// Catalog rows are keyed by (resource, action) and links by (role, permission),
// so a re-run only adds what is missing and never resets customized links.
func (s *Service) InitializeTenantRoles(ctx context.Context, tenantID string) error {
	if _, err := s.repo.GetByID(ctx, tenantID); err != nil {
		return err
	}

	err := s.store.WithinTx(ctx, func(tx authz.Tx) error {
		catalog, err := seedCatalog(ctx, tx)
		if err != nil {
			return err
		}
		for _, t := range authz.DefaultTenantRoles {
			role, err := tx.UpsertRole(ctx, tenantID, t.Name, t.Description, t.Level, false)
			if err != nil {
				return fmt.Errorf("failed to upsert role %s: %w", t.Name, err)
			}
			for _, e := range t.Permissions {
				perm, ok := catalog[e]
				if !ok {
					return fmt.Errorf("role %s references %s:%s: %w", t.Name, e.Resource, e.Action, authz.ErrUnknownPermission)
				}
				if err := tx.LinkRolePermission(ctx, role.ID, perm.ID, nil); err != nil {
					return fmt.Errorf("failed to link %s to %s:%s: %w", t.Name, e.Resource, e.Action, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tenant roles: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantBootstrapped,
		TenantID: tenantID,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: tenantID,
		Metadata: map[string]any{"roles": len(authz.DefaultTenantRoles)},
	})
	return nil
}

// BootstrapConfig names the principal that receives SUPER_ADMIN on first start
type BootstrapConfig struct {
	Email      string
	TenantName string
}

// BootstrapSuperAdmin grants SUPER_ADMIN to the configured principal, creating
// its tenant and principal when missing. It does nothing when no email is
// configured or when any principal already holds the role.
func (s *Service) BootstrapSuperAdmin(ctx context.Context, cfg BootstrapConfig) error {
	if cfg.Email == "" {
		return nil
	}
	if cfg.TenantName == "" {
		cfg.TenantName = PlatformTenantName
	}

	// 1. Make sure the global role exists
	if err := s.InitializePlatform(ctx); err != nil {
		return err
	}
	role, err := s.store.FindRoleByName(ctx, "", authz.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("failed to load %s role: %w", authz.RoleSuperAdmin, err)
	}

	// 2. Skip if any super admin already exists
	inUse, err := s.store.RoleInUse(ctx, role.ID)
	if err != nil {
		return fmt.Errorf("failed to check for existing super admin: %w", err)
	}
	if inUse {
		return nil
	}

	// 3. Resolve the host tenant and the principal
	t, err := s.repo.GetByName(ctx, cfg.TenantName)
	if errors.Is(err, ErrTenantNotFound) {
		t, err = s.CreateTenant(ctx, cfg.TenantName, audit.ActorSystemBootstrap)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve bootstrap tenant %s: %w", cfg.TenantName, err)
	}

	user, err := s.principals.FindByEmail(ctx, t.ID, cfg.Email)
	if errors.Is(err, identity.ErrUserNotFound) {
		user, err = s.principals.CreatePrincipal(ctx, identity.CreatePrincipalInput{
			TenantID:    t.ID,
			Email:       cfg.Email,
			DisplayName: "Platform Administrator",
			CreatedBy:   audit.ActorSystemBootstrap,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to resolve bootstrap principal %s: %w", cfg.Email, err)
	}

	// 4. Assign the role
	if _, err := s.admin.AssignRole(ctx, authz.AssignRoleInput{
		PrincipalID: user.ID,
		RoleID:      role.ID,
		ActorID:     audit.ActorSystemBootstrap,
	}); err != nil {
		return fmt.Errorf("failed to grant %s during bootstrap: %w", authz.RoleSuperAdmin, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSuperAdminBootstrap,
		TenantID: t.ID,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: user.ID,
		Metadata: map[string]any{
			audit.AttrEmail:    user.Email,
			audit.AttrTenantID: t.ID,
			audit.AttrRoleID:   role.ID,
		},
	})

	slog.InfoContext(ctx, "bootstrapped initial super admin",
		slog.String("email", user.Email),
		slog.String("tenant_id", t.ID),
	)
	return nil
}
