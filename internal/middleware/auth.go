package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"evento/internal/auth"
	"evento/internal/models"
	"evento/internal/repository"
)

type contextKey string

const userKey contextKey = "user"

// UserLoader loads the account behind a token
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// TenantLoader loads the tenant a client account belongs to
type TenantLoader interface {
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
}

// AuthMiddleware validates JWT tokens and loads the calling user
type AuthMiddleware struct {
	authService *auth.Service
	users       UserLoader
	tenants     TenantLoader
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *auth.Service, users UserLoader, tenants TenantLoader) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		users:       users,
		tenants:     tenants,
	}
}

// Authenticate validates the bearer token and adds the active user to the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Missing or malformed authorization header")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(w, http.StatusUnauthorized, "Unknown user")
			return
		}
		if err != nil {
			slog.Error("Failed to load user for token", "user_id", claims.UserID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to load user")
			return
		}
		if !user.IsActive {
			respondWithError(w, http.StatusForbidden, "User account is inactive")
			return
		}

		// client accounts are suspended together with their tenant
		if user.Tipo == models.UserTypeClient && user.TenantID != nil {
			tenant, err := m.tenants.GetByID(r.Context(), *user.TenantID)
			if err != nil {
				slog.Error("Failed to load tenant for user", "user_id", user.ID, "tenant_id", *user.TenantID, "error", err)
				respondWithError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}
			if !tenant.IsActive {
				respondWithError(w, http.StatusForbidden, "Tenant is inactive")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser retrieves the authenticated user from the request context
func GetUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(userKey).(*models.User)
	return user, ok && user != nil
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message}); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
