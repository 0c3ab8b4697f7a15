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

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/otel/metric"

	"github.com/salonhub/salonhub/internal/audit"
	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
	"github.com/salonhub/salonhub/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				level := slog.LevelInfo
				if ww.Status() >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				slog.Log(r.Context(), level, "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
					logger.PrincipalID(GetPrincipalID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SecureHeadersConfig tunes the response hardening middleware
type SecureHeadersConfig struct {
	AllowedHosts  []string
	IsDevelopment bool
}

// SecureHeaders sets browser hardening headers. The API serves JSON only, so
// the content security policy forbids everything.
func SecureHeaders(cfg SecureHeadersConfig) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		AllowedHosts:          cfg.AllowedHosts,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         cfg.IsDevelopment,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				slog.WarnContext(r.Context(), "secure headers blocked request", logger.Error(err))
				respondError(w, http.StatusBadRequest, "request rejected")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InFlightMiddleware tracks concurrent requests on an up/down counter
func InFlightMiddleware(counter metric.Int64UpDownCounter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			counter.Add(r.Context(), 1)
			defer counter.Add(r.Context(), -1)
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware verifies the bearer token and puts the principal in context.
// The token only identifies the caller; every privilege comes from Authorize.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := h.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			slog.DebugContext(r.Context(), "bearer token rejected", logger.Error(err))
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), claims.Subject, claims.TenantID)))
	})
}

// scopeFunc builds the decision context for a request
type scopeFunc func(r *http.Request) (authz.Attributes, error)

// tenantScope pins the decision to the tenant named in the URL
func tenantScope(r *http.Request) (authz.Attributes, error) {
	return authz.Attributes{authz.AttrTenantID: authz.String(chi.URLParam(r, "tenantID"))}, nil
}

// principalScope pins the decision to the tenant of the principal in the URL
func (h *Handler) principalScope(r *http.Request) (authz.Attributes, error) {
	target, err := h.identityService.GetPrincipal(r.Context(), chi.URLParam(r, "principalID"))
	if err != nil {
		return nil, err
	}
	return authz.Attributes{authz.AttrTenantID: authz.String(target.TenantID)}, nil
}

// RequirePermission denies the request unless the caller holds action on
// resource within the scope the request addresses.
func (h *Handler) RequirePermission(resource string, action authz.Action, scope scopeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs, err := scope(r)
			if err != nil {
				if errors.Is(err, identity.ErrUserNotFound) {
					respondError(w, http.StatusNotFound, "principal not found")
					return
				}
				slog.ErrorContext(r.Context(), "failed to resolve request scope", logger.Error(err))
				respondError(w, http.StatusInternalServerError, "internal error")
				return
			}

			if d := h.decide(r.Context(), resource, action, attrs); !d.Allowed {
				h.accessDenied(r, resource, action, d.Reason)
				respondJSON(w, http.StatusForbidden, map[string]string{
					"error":  "forbidden",
					"reason": string(d.Reason),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin admits platform administrators only
func (h *Handler) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
		defer cancel()

		ok, err := h.authzService.IsSuperAdmin(ctx, GetPrincipalID(r.Context()))
		if err != nil && !errors.Is(err, authz.ErrPrincipalNotFound) {
			slog.ErrorContext(r.Context(), "super admin check failed", logger.Error(err))
		}
		if !ok {
			h.accessDenied(r, "PLATFORM", authz.ActionManage, authz.ReasonNoPermission)
			respondError(w, http.StatusForbidden, "platform administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) decide(ctx context.Context, resource string, action authz.Action, attrs authz.Attributes) authz.Decision {
	ctx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()
	return h.authzService.Decide(ctx, GetPrincipalID(ctx), resource, action, attrs)
}

func (h *Handler) accessDenied(r *http.Request, resource string, action authz.Action, reason authz.Reason) {
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAccessDenied,
		TenantID:  GetTenantID(r.Context()),
		ActorID:   GetPrincipalID(r.Context()),
		Resource:  resource,
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata: map[string]any{
			"action": string(action),
			"reason": string(reason),
			"path":   r.URL.Path,
		},
	})
}
