package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evento/internal/auth"
	"evento/internal/config"
	"evento/internal/models"
)

// AuthHelper signs tokens with the same auth.Service the router under test uses
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates a new auth helper with an ephemeral signing key
func NewAuthHelper() *AuthHelper {
	return &AuthHelper{
		Service: auth.NewService(&config.JWTConfig{
			Secret:     "test-secret-key-for-testing-only",
			Expiration: time.Hour,
		}),
	}
}

// GenerateToken generates a JWT token for a user
func (h *AuthHelper) GenerateToken(user *models.User) (string, error) {
	token, _, err := h.Service.GenerateToken(auth.Subject{
		UserID:   user.ID,
		Email:    user.Email,
		Tipo:     user.Tipo,
		TenantID: user.TenantID,
	})
	return token, err
}

// AddAuthHeader adds an authorization header to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, req *http.Request, user *models.User) {
	t.Helper()

	token, err := h.GenerateToken(user)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}
