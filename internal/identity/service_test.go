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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salonhub/salonhub/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	args := m.Called(ctx, tenantID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	args := m.Called(ctx, id, active, at)
	return args.Error(0)
}

func (m *mockUserRepo) SetBranches(ctx context.Context, id string, branchIDs []string) error {
	args := m.Called(ctx, id, branchIDs)
	return args.Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

// TestPurpose: Validates that a new principal is created active, with a UUIDv7 ID and a normalized email.
// Scope: Unit Test
// Expected: Principal is persisted and a principal_created audit event is logged.
// Test Case ID: IDN-01
func TestIdentity_CreatePrincipal(t *testing.T) {
	repo := new(mockUserRepo)
	auditLogger := new(mockAudit)
	svc := NewService(repo, auditLogger)
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "tenant-a", "ana@example.com").Return(nil, ErrUserNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(u *User) bool {
		return u.Active && u.TenantID == "tenant-a" && u.Email == "ana@example.com"
	})).Return(nil)
	auditLogger.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypePrincipalCreated && e.ActorID == "admin-1"
	})).Return()

	user, err := svc.CreatePrincipal(ctx, CreatePrincipalInput{
		TenantID:  "tenant-a",
		Email:     "  Ana@Example.com ",
		BranchIDs: []string{"b1", " b1", "", "b2"},
		CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	uid, err := uuid.Parse(user.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), uid.Version())
	assert.Equal(t, []string{"b1", "b2"}, user.BranchIDs)

	repo.AssertExpectations(t)
	auditLogger.AssertExpectations(t)
}

// TestPurpose: Validates input checks on principal creation.
// Scope: Unit Test
// Expected: Missing tenant, bad email and duplicates are rejected.
// Test Case ID: IDN-02
func TestIdentity_CreatePrincipal_Rejects(t *testing.T) {
	ctx := context.Background()

	t.Run("missing tenant", func(t *testing.T) {
		svc := NewService(new(mockUserRepo), new(mockAudit))
		_, err := svc.CreatePrincipal(ctx, CreatePrincipalInput{Email: "a@example.com"})
		assert.ErrorIs(t, err, ErrTenantRequired)
	})

	t.Run("invalid email", func(t *testing.T) {
		svc := NewService(new(mockUserRepo), new(mockAudit))
		_, err := svc.CreatePrincipal(ctx, CreatePrincipalInput{TenantID: "t", Email: "not-an-email"})
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("duplicate", func(t *testing.T) {
		repo := new(mockUserRepo)
		repo.On("GetByEmail", ctx, "t", "a@example.com").Return(&User{ID: "u1"}, nil)
		svc := NewService(repo, new(mockAudit))
		_, err := svc.CreatePrincipal(ctx, CreatePrincipalInput{TenantID: "t", Email: "a@example.com"})
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})
}

// TestPurpose: Validates that deactivation flips the active flag and is audited.
// Scope: Unit Test
// Security: Deactivated principals must lose access on the next check
// Expected: SetActive(false) is called and a principal_deactivated event is logged.
// Test Case ID: IDN-03
func TestIdentity_Deactivate(t *testing.T) {
	repo := new(mockUserRepo)
	auditLogger := new(mockAudit)
	svc := NewService(repo, auditLogger)
	ctx := context.Background()

	repo.On("GetByID", ctx, "u1").Return(&User{ID: "u1", TenantID: "t", Active: true}, nil)
	repo.On("SetActive", ctx, "u1", false, mock.Anything).Return(nil)
	auditLogger.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypePrincipalDeactivated && e.Resource == "u1"
	})).Return()

	require.NoError(t, svc.Deactivate(ctx, "u1", "admin-1"))
	repo.AssertExpectations(t)
	auditLogger.AssertExpectations(t)
}

// TestPurpose: Validates that unknown principals surface ErrUserNotFound.
// Scope: Unit Test
// Expected: Deactivate and SetBranches return ErrUserNotFound.
// Test Case ID: IDN-04
func TestIdentity_UnknownPrincipal(t *testing.T) {
	repo := new(mockUserRepo)
	svc := NewService(repo, new(mockAudit))
	ctx := context.Background()

	repo.On("GetByID", ctx, "ghost").Return(nil, ErrUserNotFound)

	assert.ErrorIs(t, svc.Deactivate(ctx, "ghost", "admin"), ErrUserNotFound)
	assert.ErrorIs(t, svc.SetBranches(ctx, "ghost", "admin", []string{"b1"}), ErrUserNotFound)
}

func TestUser_InBranch(t *testing.T) {
	u := &User{BranchIDs: []string{"b1", "b2"}}
	assert.True(t, u.InBranch("b2"))
	assert.False(t, u.InBranch("b3"))
}

// TestPurpose: Validates that email normalization is Unicode-aware.
// Scope: Unit Test
// Security: Account Confusion Prevention (CWE-178)
// Expected: Case and composition variants of one address normalize identically.
// Test Case ID: IDN-05
func TestNormalizeEmail(t *testing.T) {
	composed := "  Ana.M\u00fcller@Glow.TEST "
	decomposed := "ana.mu\u0308ller@glow.test"

	assert.Equal(t, "ana.m\u00fcller@glow.test", NormalizeEmail(composed))
	assert.Equal(t, NormalizeEmail(composed), NormalizeEmail(decomposed))
	assert.Equal(t, "stylist@glow.test", NormalizeEmail("STYLIST@glow.test"))
}
