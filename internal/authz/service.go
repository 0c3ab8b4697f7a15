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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/observability/logger"
	"github.com/salonhub/salonhub/internal/observability/metrics"
)

// Reason explains a decision. It is diagnostic only and never changes the
// boolean outcome.
type Reason string

const (
	ReasonAllowed           Reason = "allowed"
	ReasonSuperAdmin        Reason = "super_admin"
	ReasonOwner             Reason = "owner"
	ReasonPrincipalNotFound Reason = "principal_not_found"
	ReasonPrincipalInactive Reason = "principal_inactive"
	ReasonStoreError        Reason = "store_error"
	ReasonCanceled          Reason = "canceled"
	ReasonInvalidRequest    Reason = "invalid_request"
	ReasonNoPermission      Reason = "no_permission"
	ReasonConditionMismatch Reason = "condition_mismatch"
	ReasonBranchScope       Reason = "branch_scope"
	ReasonTenantBoundary    Reason = "tenant_boundary"
	ReasonMalformedContext  Reason = "malformed_context"
)

// Decision is the result of an authorization check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

func allow(r Reason) Decision { return Decision{Allowed: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Allowed: false, Reason: r} }

// Service is the decision entrypoint. It holds no mutable state; every call
// reads the store afresh, so revocations and expiry apply on the next check.
type Service struct {
	reader      Reader
	logger      *slog.Logger
	tracer      trace.Tracer
	instruments *metrics.DecisionInstruments
	now         func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for denial diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer sets the tracer used for decision spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics records a counter and latency histogram per decision
func WithMetrics(i *metrics.DecisionInstruments) Option {
	return func(s *Service) { s.instruments = i }
}

// NewService creates a new authorization service
func NewService(reader Reader, opts ...Option) *Service {
	s := &Service{
		reader: reader,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/salonhub/salonhub/internal/authz"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authorize reports whether the principal may perform action on resource.
// A nil attrs means no context was supplied. Any failure denies.
func (s *Service) Authorize(ctx context.Context, principalID, resource string, action Action, attrs Attributes) bool {
	return s.Decide(ctx, principalID, resource, action, attrs).Allowed
}

// Decide is Authorize with the diagnostic reason attached.
func (s *Service) Decide(ctx context.Context, principalID, resource string, action Action, attrs Attributes) (d Decision) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "authz.Decide", trace.WithAttributes(
		attribute.String("authz.principal_id", principalID),
		attribute.String("authz.resource", resource),
		attribute.String("authz.action", string(action)),
	))
	defer func() {
		span.SetAttributes(
			attribute.Bool("authz.allowed", d.Allowed),
			attribute.String("authz.reason", string(d.Reason)),
		)
		span.End()
		s.instruments.Record(ctx, d.Allowed, string(d.Reason), time.Since(start))
		if !d.Allowed {
			s.logger.DebugContext(ctx, "authorization denied",
				logger.PrincipalID(principalID),
				logger.Resource(resource),
				logger.Action(string(action)),
				logger.Reason(string(d.Reason)),
			)
		}
	}()

	if principalID == "" || resource == "" || !action.Valid() {
		return deny(ReasonInvalidRequest)
	}

	g, err := s.resolve(ctx, principalID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPrincipalNotFound):
			return deny(ReasonPrincipalNotFound)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return deny(ReasonCanceled)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "grant resolution failed")
			s.logger.ErrorContext(ctx, "failed to resolve grants",
				logger.PrincipalID(principalID),
				logger.Error(err),
			)
			return deny(ReasonStoreError)
		}
	}
	return evaluate(g, resource, action, attrs)
}

// evaluate is the pure part of a decision, applied to resolved grants.
func evaluate(g *grants, resource string, action Action, attrs Attributes) Decision {
	if !g.principal.Active {
		return deny(ReasonPrincipalInactive)
	}
	if g.superAdmin {
		return allow(ReasonSuperAdmin)
	}

	ov, ok := parseOverlay(attrs)
	if !ok {
		return deny(ReasonMalformedContext)
	}
	// ownership never crosses tenants
	if ov.hasTenant && ov.tenantID != g.principal.TenantID {
		return deny(ReasonTenantBoundary)
	}
	if ov.hasOwner && ov.ownerID == g.principal.ID {
		return allow(ReasonOwner)
	}

	switch g.set.Check(resource, action, attrs) {
	case MatchNone:
		return deny(ReasonNoPermission)
	case MatchConditionFailed:
		return deny(ReasonConditionMismatch)
	}

	if ov.hasBranch && !g.principal.InBranch(ov.branchID) &&
		!g.set.AllowsUnconditionally(ResourceBranches, ActionManage) {
		return deny(ReasonBranchScope)
	}
	return allow(ReasonAllowed)
}

type overlay struct {
	ownerID, branchID, tenantID    string
	hasOwner, hasBranch, hasTenant bool
}

// parseOverlay extracts the contextual keys. A non-string value under one of
// them makes the whole context malformed.
func parseOverlay(attrs Attributes) (o overlay, ok bool) {
	if o.ownerID, o.hasOwner, ok = stringAttr(attrs, AttrOwnerID); !ok {
		return overlay{}, false
	}
	if o.branchID, o.hasBranch, ok = stringAttr(attrs, AttrBranchID); !ok {
		return overlay{}, false
	}
	if o.tenantID, o.hasTenant, ok = stringAttr(attrs, AttrTenantID); !ok {
		return overlay{}, false
	}
	return o, true
}

func stringAttr(attrs Attributes, key string) (s string, present, ok bool) {
	v, found := attrs[key]
	if !found {
		return "", false, true
	}
	s, ok = v.AsString()
	return s, true, ok
}

// grants is one principal's resolved state for a single check.
type grants struct {
	principal  *identity.User
	superAdmin bool
	roles      []*Role
	set        *EffectivePermissionSet
}

// resolve loads the principal, then its assignments and direct grants in
// parallel. Either read failing fails the whole resolution.
func (s *Service) resolve(ctx context.Context, principalID string) (*grants, error) {
	principal, err := s.reader.GetPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	out := &grants{principal: principal, set: &EffectivePermissionSet{}}
	if !principal.Active {
		return out, nil
	}

	var (
		assignments []*RoleAssignment
		direct      []*DirectGrant
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		assignments, err = s.reader.ListRoleAssignments(egCtx, principalID)
		if err != nil {
			return fmt.Errorf("failed to list role assignments: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		direct, err = s.reader.ListDirectGrants(egCtx, principalID)
		if err != nil {
			return fmt.Errorf("failed to list direct grants: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	seenRoles := make(map[string]struct{})
	for _, a := range assignments {
		if a.Role == nil || a.Expired(now) || !roleApplies(a.Role, principal.TenantID) {
			continue
		}
		if _, dup := seenRoles[a.Role.ID]; !dup {
			seenRoles[a.Role.ID] = struct{}{}
			out.roles = append(out.roles, a.Role)
		}
		if a.Role.SuperAdmin {
			out.superAdmin = true
			continue
		}
		for _, p := range a.Role.Permissions {
			out.set.Add(p)
		}
	}
	for _, dg := range direct {
		if dg.Expired(now) {
			continue
		}
		out.set.Add(dg.Permission)
	}
	return out, nil
}

// roleApplies keeps roles from other tenants out of a principal's grants.
// Only the global super-admin role crosses tenants.
func roleApplies(r *Role, tenantID string) bool {
	if r.SuperAdmin {
		return r.Global()
	}
	return r.TenantID == tenantID
}

// EffectivePermissions returns the principal's deduplicated live permissions.
// An inactive principal holds nothing.
func (s *Service) EffectivePermissions(ctx context.Context, principalID string) ([]Permission, error) {
	ctx, span := s.tracer.Start(ctx, "authz.EffectivePermissions")
	defer span.End()

	g, err := s.resolve(ctx, principalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !g.principal.Active {
		return []Permission{}, nil
	}
	return g.set.Permissions(), nil
}

// GetUserRoles returns the principal's live roles, without their permission
// lists. An inactive principal holds no roles.
func (s *Service) GetUserRoles(ctx context.Context, principalID string) ([]*Role, error) {
	ctx, span := s.tracer.Start(ctx, "authz.GetUserRoles")
	defer span.End()

	g, err := s.resolve(ctx, principalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	roles := make([]*Role, 0, len(g.roles))
	for _, r := range g.roles {
		cp := *r
		cp.Permissions = nil
		roles = append(roles, &cp)
	}
	return roles, nil
}

// IsSuperAdmin reports whether the principal currently holds the global
// super-admin role.
func (s *Service) IsSuperAdmin(ctx context.Context, principalID string) (bool, error) {
	g, err := s.resolve(ctx, principalID)
	if err != nil {
		return false, err
	}
	return g.principal.Active && g.superAdmin, nil
}
