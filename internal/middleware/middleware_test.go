package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evento/internal/auth"
	"evento/internal/config"
	"evento/internal/models"
	"evento/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type fakeTenants map[int64]*models.Tenant

func (f fakeTenants) GetByID(_ context.Context, id int64) (*models.Tenant, error) {
	t, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func newAuthFixture(t *testing.T) (*AuthMiddleware, *auth.Service) {
	t.Helper()
	svc := auth.NewService(&config.JWTConfig{Secret: "test-secret", Expiration: time.Hour})
	tenant, suspended := int64(1), int64(2)
	tenants := fakeTenants{
		1: {ID: 1, Name: "Active", IsActive: true},
		2: {ID: 2, Name: "Suspended", IsActive: false},
	}
	users := fakeUsers{
		1: {ID: 1, Email: "admin@example.com", Tipo: models.UserTypeAdmin, IsActive: true},
		2: {ID: 2, Email: "owner@example.com", Tipo: models.UserTypeClient, TenantID: &tenant, IsActive: true},
		3: {ID: 3, Email: "gone@example.com", Tipo: models.UserTypeParticipant, IsActive: false},
		4: {ID: 4, Email: "guest@example.com", Tipo: models.UserTypeParticipant, IsActive: true},
		5: {ID: 5, Email: "suspended@example.com", Tipo: models.UserTypeClient, TenantID: &suspended, IsActive: true},
	}
	return NewAuthMiddleware(svc, users, tenants), svc
}

func tokenFor(t *testing.T, svc *auth.Service, id int64) string {
	t.Helper()
	token, _, err := svc.GenerateToken(auth.Subject{UserID: id})
	require.NoError(t, err)
	return token
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthenticate(t *testing.T) {
	m, svc := newAuthFixture(t)

	var seen *models.User
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUser(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"unknown user", "Bearer " + tokenFor(t, svc, 99), http.StatusUnauthorized},
		{"inactive user", "Bearer " + tokenFor(t, svc, 3), http.StatusForbidden},
		{"client of inactive tenant", "Bearer " + tokenFor(t, svc, 5), http.StatusForbidden},
		{"active user", "Bearer " + tokenFor(t, svc, 2), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, int64(2), seen.ID)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestRequireType(t *testing.T) {
	m, svc := newAuthFixture(t)
	h := m.Authenticate(RequireType(models.UserTypeClient)(okHandler))

	tests := []struct {
		name string
		user int64
		want int
	}{
		{"admin passes", 1, http.StatusOK},
		{"client passes", 2, http.StatusOK},
		{"participant rejected", 4, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, tt.user))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	RequireType(models.UserTypeClient)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, Requests: 3, Duration: time.Minute})
	h := rl.Limit(okHandler)

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit("10.0.0.1:5000"))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:5001"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:5000"), "other clients have their own bucket")
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: false, Requests: 1, Duration: time.Minute})
	h := rl.Limit(okHandler)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestGetIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t, "192.0.2.7", getIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getIP(req))
}

func TestCORS(t *testing.T) {
	m := NewCORSMiddleware(&config.CORSConfig{
		AllowedOrigins:   []string{"https://app.example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	h := m.Handler(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	var route string
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		route = r.Pattern
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "GET /items/{id}", route)
}
