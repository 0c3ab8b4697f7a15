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

// @title SalonHub Authorization API
// @version 1.0.0
// @description Multi-tenant role-based access control for salon operations
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/observability/logger"
	"github.com/salonhub/salonhub/internal/tenant"
)

// Pinger reports backing store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	authzService    *authz.Service
	adminService    *authz.AdminService
	tenantService   *tenant.Service
	auditLogger     audit.Logger
	tokens          *TokenVerifier
	pinger          Pinger
	validate        *validator.Validate
	checkTimeout    time.Duration
}

// Deps are the services the HTTP layer fronts
type Deps struct {
	Identity     *identity.Service
	Authz        *authz.Service
	Admin        *authz.AdminService
	Tenants      *tenant.Service
	AuditLogger  audit.Logger
	Tokens       *TokenVerifier
	Pinger       Pinger
	CheckTimeout time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(d Deps) *Handler {
	if d.CheckTimeout <= 0 {
		d.CheckTimeout = 2 * time.Second
	}
	return &Handler{
		identityService: d.Identity,
		authzService:    d.Authz,
		adminService:    d.Admin,
		tenantService:   d.Tenants,
		auditLogger:     d.AuditLogger,
		tokens:          d.Tokens,
		pinger:          d.Pinger,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		checkTimeout:    d.CheckTimeout,
	}
}

// RouterConfig holds the cross-cutting middleware settings
type RouterConfig struct {
	RateLimiter    *RateLimiter
	Secure         SecureHeadersConfig
	RequestTimeout time.Duration
	InFlight       metric.Int64UpDownCounter
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.RateLimiter != nil {
		r.Use(RateLimitMiddleware(cfg.RateLimiter))
	}
	r.Use(SecureHeaders(cfg.Secure))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	if cfg.InFlight != nil {
		r.Use(InFlightMiddleware(cfg.InFlight))
	}
	r.Use(LoggingMiddleware())
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/authorize", h.Authorize)

		r.Route("/principals", func(r chi.Router) {
			r.Post("/", h.CreatePrincipal)

			r.Route("/{principalID}", func(r chi.Router) {
				r.Get("/permissions", h.EffectivePermissions)
				r.Get("/roles", h.GetUserRoles)

				r.Group(func(r chi.Router) {
					r.Use(h.RequirePermission(authz.ResourceUsers, authz.ActionManage, h.principalScope))
					r.Post("/deactivate", h.DeactivatePrincipal)
					r.Post("/activate", h.ActivatePrincipal)
					r.Put("/branches", h.SetBranches)
				})

				r.Group(func(r chi.Router) {
					r.Use(h.RequirePermission(authz.ResourceRoles, authz.ActionManage, h.principalScope))
					r.Post("/roles", h.AssignRole)
					r.Delete("/roles/{roleID}", h.RemoveRole)
					r.Post("/permissions", h.GrantPermission)
					r.Delete("/permissions/{resource}/{action}", h.RevokePermission)
				})
			})
		})

		r.Route("/tenants", func(r chi.Router) {
			r.With(h.RequireSuperAdmin).Get("/", h.ListTenants)
			r.With(h.RequireSuperAdmin).Post("/", h.CreateTenant)

			r.Route("/{tenantID}", func(r chi.Router) {
				r.With(h.RequireSuperAdmin).Post("/bootstrap", h.BootstrapTenant)
				r.With(h.RequirePermission(authz.ResourceRoles, authz.ActionRead, tenantScope)).Get("/roles", h.ListRoles)
				r.With(h.RequirePermission(authz.ResourceRoles, authz.ActionManage, tenantScope)).Get("/audit", h.ListAuditLog)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "salonhub",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "salonhub",
	})
}

// decode reads a JSON body into dst and validates its struct tags
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondError(w, http.StatusBadRequest, "invalid field: "+verrs[0].Field())
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// respondServiceError maps domain sentinels to HTTP statuses
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrAlreadyGranted),
		errors.Is(err, identity.ErrUserAlreadyExists),
		errors.Is(err, tenant.ErrTenantAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authz.ErrNotGranted),
		errors.Is(err, authz.ErrPrincipalNotFound),
		errors.Is(err, authz.ErrRoleNotFound),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, tenant.ErrTenantNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrTenantMismatch),
		errors.Is(err, authz.ErrPrivilegeEscalation):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrUnknownPermission),
		errors.Is(err, authz.ErrInvalidAction),
		errors.Is(err, authz.ErrInvalidResource),
		errors.Is(err, authz.ErrInvalidExpiry),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrTenantRequired),
		errors.Is(err, tenant.ErrTenantNameRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request timed out")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Error(err),
			logger.Path(r.URL.Path),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
