package handlers

import (
	"net/http"

	"evento/internal/models"
	"evento/internal/service"
)

// TenantHandler handles tenant administration
type TenantHandler struct {
	tenants  *service.TenantService
	quotas   *service.QuotaService
	payments *service.PaymentService
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenants *service.TenantService, quotas *service.QuotaService, payments *service.PaymentService) *TenantHandler {
	return &TenantHandler{tenants: tenants, quotas: quotas, payments: payments}
}

// CreateTenantResponse is a new tenant with its client account
type CreateTenantResponse struct {
	Tenant *models.Tenant `json:"tenant"`
	Owner  *models.User   `json:"owner"`
}

// Create creates a tenant and its owner account
// @Summary Create tenant
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateTenantInput true "Tenant and owner"
// @Success 201 {object} CreateTenantResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/admin/tenants [post]
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.CreateTenantInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, owner, err := h.tenants.Create(r.Context(), user, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, CreateTenantResponse{Tenant: tenant, Owner: owner})
}

// List returns all tenants
// @Summary List tenants
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Tenant
// @Router /api/v1/admin/tenants [get]
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	tenants, err := h.tenants.List(r.Context(), user)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tenants)
}

// SetActive activates or deactivates a tenant
// @Summary Set tenant activity
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tenant ID"
// @Param request body object true "{\"active\": bool}"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorResponse
// @Router /api/v1/admin/tenants/{id}/active [put]
func (h *TenantHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Active == nil {
		respondWithError(w, http.StatusBadRequest, "active is required")
		return
	}

	if err := h.tenants.SetActive(r.Context(), user, id, *req.Active); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "id": id, "active": *req.Active})
}

// Usage reports the quota consumption of a tenant
// @Summary Tenant quota usage
// @Tags Tenants
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tenant ID"
// @Success 200 {object} map[string]service.Usage
// @Failure 403 {object} errorResponse
// @Router /api/v1/tenants/{id}/usage [get]
func (h *TenantHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}
	if !user.IsAdmin() && !user.OwnsTenant(id) {
		respondWithServiceError(w, r, service.ErrForbidden)
		return
	}

	usage, err := h.quotas.Usage(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, usage)
}

// StoreCredential saves the tenant's own payment gateway token
// @Summary Store payment credential
// @Description Encrypts the access token with Vault transit and stores it for the tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tenant ID"
// @Param request body object true "{\"access_token\": string}"
// @Success 204
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Router /api/v1/payment-credentials/{id} [put]
func (h *TenantHandler) StoreCredential(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.payments.StoreCredential(r.Context(), user, id, req.AccessToken); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
