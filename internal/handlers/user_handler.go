package handlers

import (
	"net/http"
	"strconv"

	"evento/internal/repository"
	"evento/internal/service"
)

// UserHandler handles profile and account management requests
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UpdateProfileRequest carries the editable profile fields
type UpdateProfileRequest struct {
	Name string `json:"name"`
	CPF  string `json:"cpf"`
}

// ChangePasswordRequest carries the current and the new password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfile updates the current user's profile
// @Summary Update user profile
// @Description Update the authenticated user's name and CPF
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile"
// @Success 200 {object} models.User
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Router /api/v1/users/me [put]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user, req.Name, req.CPF)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// ChangePassword allows a user to change their own password
// @Summary Change password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Current and new password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse "Incorrect current password"
// @Router /api/v1/users/me/password [put]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := h.users.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// parsePaginationParams parses and validates pagination parameters from the request
func parsePaginationParams(r *http.Request) (page, limit int) {
	page = 1
	limit = 20

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	return page, limit
}

// parseUserFilters parses filter parameters from the request
func parseUserFilters(r *http.Request) (repository.UserFilters, error) {
	filters := repository.UserFilters{
		Search: r.URL.Query().Get("search"),
		Tipo:   r.URL.Query().Get("tipo"),
	}

	tenantID, err := queryID(r, "cliente_id")
	if err != nil {
		return filters, err
	}
	filters.TenantID = tenantID

	if activeStr := r.URL.Query().Get("is_active"); activeStr != "" {
		if active, err := strconv.ParseBool(activeStr); err == nil {
			filters.IsActive = &active
		}
	}
	return filters, nil
}

// ListUsers lists users with pagination
// @Summary List users
// @Description Admins see every account; clients see the accounts of their tenant
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param search query string false "Name or email"
// @Param tipo query string false "User type"
// @Param cliente_id query int false "Tenant"
// @Param is_active query bool false "Active flag"
// @Success 200 {object} service.UserPage
// @Failure 403 {object} errorResponse
// @Router /api/v1/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(r)
	filters, err := parseUserFilters(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.users.List(r.Context(), user, filters, page, limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetUser gets a user by ID (admin only)
// @Summary Get user by ID
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} errorResponse
// @Router /api/v1/admin/users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}

	found, err := h.users.Get(r.Context(), user, id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, found)
}

// UpdateUserActiveStatus activates or deactivates a user (admin only)
// @Summary Update user active status
// @Description The last active admin cannot be deactivated
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object true "Status ({\"active\": bool})"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/admin/users/{id}/active [put]
func (h *UserHandler) UpdateUserActiveStatus(w http.ResponseWriter, r *http.Request) {
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
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := h.users.SetActive(r.Context(), user, id, *req.Active); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "User status updated successfully",
	})
}
