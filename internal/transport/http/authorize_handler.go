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
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
)

// AuthorizeRequest asks whether a principal may perform action on resource
type AuthorizeRequest struct {
	PrincipalID string           `json:"principal_id" validate:"required,max=128"`
	Resource    string           `json:"resource" validate:"required,max=64"`
	Action      string           `json:"action" validate:"required"`
	Context     authz.Attributes `json:"context,omitempty"`
}

// AuthorizeResponse carries the decision
type AuthorizeResponse struct {
	Allowed bool         `json:"allowed"`
	Reason  authz.Reason `json:"reason"`
}

// Authorize evaluates an access check
// @Summary Authorize
// @Description Decide whether a principal may act on a resource. Callers may ask about themselves or, with READ on ROLES, about principals of their tenant.
// @Tags Authorization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AuthorizeRequest true "Check"
// @Success 200 {object} AuthorizeResponse
// @Failure 403 {object} map[string]string
// @Router /authorize [post]
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.canInspect(w, r, req.PrincipalID) {
		return
	}

	d := h.decideFor(r, req.PrincipalID, req.Resource, authz.Action(req.Action), req.Context)
	respondJSON(w, http.StatusOK, AuthorizeResponse{Allowed: d.Allowed, Reason: d.Reason})
}

// EffectivePermissions lists what a principal can currently do
// @Summary Effective Permissions
// @Tags Authorization
// @Produce json
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Success 200 {array} authz.Permission
// @Router /principals/{principalID}/permissions [get]
func (h *Handler) EffectivePermissions(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")
	if !h.canInspect(w, r, principalID) {
		return
	}

	perms, err := h.authzService.EffectivePermissions(r.Context(), principalID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

// GetUserRoles lists the live roles of a principal
// @Summary Principal Roles
// @Tags Authorization
// @Produce json
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Success 200 {array} authz.Role
// @Router /principals/{principalID}/roles [get]
func (h *Handler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")
	if !h.canInspect(w, r, principalID) {
		return
	}

	roles, err := h.authzService.GetUserRoles(r.Context(), principalID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

// canInspect admits the principal itself, or a caller holding READ on ROLES
// in the principal's tenant. It writes the error response when it refuses.
func (h *Handler) canInspect(w http.ResponseWriter, r *http.Request, principalID string) bool {
	if principalID == GetPrincipalID(r.Context()) {
		return true
	}

	target, err := h.identityService.GetPrincipal(r.Context(), principalID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "principal not found")
			return false
		}
		respondServiceError(w, r, err)
		return false
	}

	attrs := authz.Attributes{authz.AttrTenantID: authz.String(target.TenantID)}
	if d := h.decide(r.Context(), authz.ResourceRoles, authz.ActionRead, attrs); !d.Allowed {
		h.accessDenied(r, authz.ResourceRoles, authz.ActionRead, d.Reason)
		respondJSON(w, http.StatusForbidden, map[string]string{
			"error":  "forbidden",
			"reason": string(d.Reason),
		})
		return false
	}
	return true
}

func (h *Handler) decideFor(r *http.Request, principalID, resource string, action authz.Action, attrs authz.Attributes) authz.Decision {
	ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
	defer cancel()
	return h.authzService.Decide(ctx, principalID, resource, action, attrs)
}
