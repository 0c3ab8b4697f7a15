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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/salonhub/salonhub/internal/authz"
)

// AssignRoleRequest represents a role assignment
type AssignRoleRequest struct {
	RoleID    string     `json:"role_id" validate:"required,max=128"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AssignRole assigns a role to a principal
// @Summary Assign Role
// @Tags Administration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Param request body AssignRoleRequest true "Assignment"
// @Success 201 {object} authz.RoleAssignment
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /principals/{principalID}/roles [post]
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.adminService.AssignRole(r.Context(), authz.AssignRoleInput{
		PrincipalID: chi.URLParam(r, "principalID"),
		RoleID:      req.RoleID,
		ActorID:     GetPrincipalID(r.Context()),
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

// RemoveRole removes a role from a principal
// @Summary Remove Role
// @Tags Administration
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Param roleID path string true "Role ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /principals/{principalID}/roles/{roleID} [delete]
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	err := h.adminService.RemoveRole(r.Context(),
		chi.URLParam(r, "principalID"),
		chi.URLParam(r, "roleID"),
		GetPrincipalID(r.Context()),
	)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantPermissionRequest represents a direct grant
type GrantPermissionRequest struct {
	Resource   string           `json:"resource" validate:"required,max=64"`
	Action     authz.Action     `json:"action" validate:"required"`
	Conditions authz.Conditions `json:"conditions,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
}

// GrantPermission attaches a permission directly to a principal
// @Summary Grant Permission
// @Tags Administration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Param request body GrantPermissionRequest true "Grant"
// @Success 201 {object} authz.DirectGrant
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /principals/{principalID}/permissions [post]
func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	var req GrantPermissionRequest
	if !h.decode(w, r, &req) {
		return
	}

	g, err := h.adminService.GrantPermission(r.Context(), authz.GrantPermissionInput{
		PrincipalID: chi.URLParam(r, "principalID"),
		Resource:    req.Resource,
		Action:      req.Action,
		Conditions:  req.Conditions,
		ActorID:     GetPrincipalID(r.Context()),
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, g)
}

// RevokePermission removes a direct grant
// @Summary Revoke Permission
// @Tags Administration
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Param resource path string true "Resource"
// @Param action path string true "Action"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /principals/{principalID}/permissions/{resource}/{action} [delete]
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	action, err := authz.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	err = h.adminService.RevokePermission(r.Context(),
		chi.URLParam(r, "principalID"),
		chi.URLParam(r, "resource"),
		action,
		GetPrincipalID(r.Context()),
	)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
