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
	"strconv"

	"github.com/go-chi/chi/v5"
)

// CreateTenantRequest represents tenant creation data
type CreateTenantRequest struct {
	Name string `json:"name" validate:"required,max=200" example:"Glow Studio"`
}

// CreateTenant handles tenant creation and seeds its default roles
// @Summary Create Tenant
// @Description Create a new tenant (platform administrators only)
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTenantRequest true "Tenant Data"
// @Success 201 {object} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.tenantService.CreateTenant(r.Context(), req.Name, GetPrincipalID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// ListTenants handles listing all tenants
// @Summary List Tenants
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} tenant.Tenant
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	tenants, err := h.tenantService.ListTenants(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tenants)
}

// BootstrapTenant re-runs default role seeding for a tenant
// @Summary Bootstrap Tenant Roles
// @Tags Tenant
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID}/bootstrap [post]
func (h *Handler) BootstrapTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.tenantService.InitializeTenantRoles(r.Context(), chi.URLParam(r, "tenantID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRoles lists a tenant's roles with their permissions
// @Summary List Roles
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {array} authz.Role
// @Router /tenants/{tenantID}/roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.tenantService.ListRoles(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

// ListAuditLog lists a tenant's administration trail, newest first
// @Summary Audit Log
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} audit.Entry
// @Router /tenants/{tenantID}/audit [get]
func (h *Handler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, err := h.adminService.ListAuditLog(r.Context(), chi.URLParam(r, "tenantID"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// pagination reads limit and offset; the services clamp them
func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
