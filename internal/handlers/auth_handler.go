package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"evento/internal/models"
	"evento/internal/service"
	"evento/pkg/validator"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService  *service.AuthService
	auditService *service.AuditService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, auditService *service.AuditService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		auditService: auditService,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	CPF      string `json:"cpf"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

// Register handles participant registration
// @Summary Register a new user
// @Description Create a participant account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} models.User
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name, req.CPF)
	if err != nil {
		slog.Warn("Registration failed", "email", req.Email, "error", err)
		respondWithServiceError(w, r, err)
		return
	}

	slog.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	h.auditService.Log(r.Context(), &user.ID, service.AuditUserRegistered, "users", "User registered")
	respondWithJSON(w, http.StatusCreated, user)
}

// Login handles user login
// @Summary Login
// @Description Authenticate with email and password and receive a bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.auditService.Log(r.Context(), nil, service.AuditLoginFailed, "users", "Login failed for %s", req.Email)
		respondWithServiceError(w, r, err)
		return
	}

	h.auditService.Log(r.Context(), &user.ID, service.AuditUserLogin, "users", "User logged in")
	respondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	})
}

// Me returns the authenticated user
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
