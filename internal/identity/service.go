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
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/salonhub/salonhub/internal/audit"
)

// Service manages the principal lifecycle. It never decides access; the authz
// package reads principals fresh on every check.
type Service struct {
	repo        UserRepository
	auditLogger audit.Logger
	validate    *validator.Validate
	now         func() time.Time
}

// NewService creates a new identity service
func NewService(repo UserRepository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		validate:    validator.New(),
		now:         time.Now,
	}
}

// CreatePrincipalInput carries the fields of a new principal.
type CreatePrincipalInput struct {
	TenantID    string
	Email       string
	DisplayName string
	BranchIDs   []string
	CreatedBy   string
}

// CreatePrincipal creates a new active principal in a tenant
func (s *Service) CreatePrincipal(ctx context.Context, in CreatePrincipalInput) (*User, error) {
	if in.TenantID == "" {
		return nil, ErrTenantRequired
	}
	email := NormalizeEmail(in.Email)
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return nil, ErrInvalidEmail
	}

	existing, err := s.repo.GetByEmail(ctx, in.TenantID, email)
	if err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing principal: %w", err)
	}

	now := s.now()
	user := &User{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    in.TenantID,
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Active:      true,
		BranchIDs:   normalizeIDs(in.BranchIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create principal: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePrincipalCreated,
		TenantID: user.TenantID,
		ActorID:  in.CreatedBy,
		Resource: user.ID,
		Metadata: map[string]any{audit.AttrEmail: user.Email},
	})

	return user, nil
}

// GetPrincipal retrieves a principal by ID
func (s *Service) GetPrincipal(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByEmail looks a principal up by its normalized email within a tenant
func (s *Service) FindByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, tenantID, NormalizeEmail(email))
}

// Deactivate soft-deactivates a principal. Every later check sees the change.
func (s *Service) Deactivate(ctx context.Context, id, actorID string) error {
	return s.setActive(ctx, id, actorID, false)
}

// Activate re-enables a deactivated principal
func (s *Service) Activate(ctx context.Context, id, actorID string) error {
	return s.setActive(ctx, id, actorID, true)
}

func (s *Service) setActive(ctx context.Context, id, actorID string, active bool) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active, s.now()); err != nil {
		return fmt.Errorf("failed to update principal status: %w", err)
	}

	eventType := audit.TypePrincipalDeactivated
	if active {
		eventType = audit.TypePrincipalActivated
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: user.TenantID,
		ActorID:  actorID,
		Resource: id,
	})
	return nil
}

// SetBranches replaces a principal's branch affiliations
func (s *Service) SetBranches(ctx context.Context, id, actorID string, branchIDs []string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	branches := normalizeIDs(branchIDs)
	if err := s.repo.SetBranches(ctx, id, branches); err != nil {
		return fmt.Errorf("failed to update branches: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeBranchesUpdated,
		TenantID: user.TenantID,
		ActorID:  actorID,
		Resource: id,
		Metadata: map[string]any{"branch_ids": branches},
	})
	return nil
}

// NormalizeEmail trims, NFC-composes and case-folds an address. Stored emails
// are always in this form, so lookups match however the caller typed them.
func NormalizeEmail(email string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(email)))
}

// normalizeIDs trims, drops empties and deduplicates while keeping order.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
