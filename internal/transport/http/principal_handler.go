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

	"github.com/go-chi/chi/v5"

	"github.com/salonhub/salonhub/internal/authz"
	"github.com/salonhub/salonhub/internal/identity"
)

// CreatePrincipalRequest represents principal creation data
type CreatePrincipalRequest struct {
	TenantID    string   `json:"tenant_id" validate:"required,max=128"`
	Email       string   `json:"email" validate:"required,email,max=254"`
	DisplayName string   `json:"display_name" validate:"max=200"`
	BranchIDs   []string `json:"branch_ids" validate:"max=100,dive,required,max=128"`
}

// CreatePrincipal creates a principal in a tenant
// @Summary Create Principal
// @Tags Principals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePrincipalRequest true "Principal Data"
// @Success 201 {object} identity.User
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /principals [post]
func (h *Handler) CreatePrincipal(w http.ResponseWriter, r *http.Request) {
	var req CreatePrincipalRequest
	if !h.decode(w, r, &req) {
		return
	}

	attrs := authz.Attributes{authz.AttrTenantID: authz.String(req.TenantID)}
	if d := h.decide(r.Context(), authz.ResourceUsers, authz.ActionManage, attrs); !d.Allowed {
		h.accessDenied(r, authz.ResourceUsers, authz.ActionManage, d.Reason)
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "reason": string(d.Reason)})
		return
	}

	user, err := h.identityService.CreatePrincipal(r.Context(), identity.CreatePrincipalInput{
		TenantID:    req.TenantID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		BranchIDs:   req.BranchIDs,
		CreatedBy:   GetPrincipalID(r.Context()),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// DeactivatePrincipal turns a principal off; every later check denies it
// @Summary Deactivate Principal
// @Tags Principals
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Success 204
// @Router /principals/{principalID}/deactivate [post]
func (h *Handler) DeactivatePrincipal(w http.ResponseWriter, r *http.Request) {
	if err := h.identityService.Deactivate(r.Context(), chi.URLParam(r, "principalID"), GetPrincipalID(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivatePrincipal re-enables a principal
// @Summary Activate Principal
// @Tags Principals
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Success 204
// @Router /principals/{principalID}/activate [post]
func (h *Handler) ActivatePrincipal(w http.ResponseWriter, r *http.Request) {
	if err := h.identityService.Activate(r.Context(), chi.URLParam(r, "principalID"), GetPrincipalID(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetBranchesRequest replaces branch affiliations
type SetBranchesRequest struct {
	BranchIDs []string `json:"branch_ids" validate:"max=100,dive,required,max=128"`
}

// SetBranches replaces a principal's branch affiliations
// @Summary Set Branches
// @Tags Principals
// @Accept json
// @Security BearerAuth
// @Param principalID path string true "Principal ID"
// @Param request body SetBranchesRequest true "Branches"
// @Success 204
// @Router /principals/{principalID}/branches [put]
func (h *Handler) SetBranches(w http.ResponseWriter, r *http.Request) {
	var req SetBranchesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.identityService.SetBranches(r.Context(), chi.URLParam(r, "principalID"), GetPrincipalID(r.Context()), req.BranchIDs); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
