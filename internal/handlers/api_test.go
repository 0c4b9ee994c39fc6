package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evento/internal/app"
	"evento/internal/auth"
	"evento/internal/config"
	"evento/internal/middleware"
	"evento/internal/models"
	"evento/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiHarness struct {
	t        *testing.T
	app      *app.App
	handler  http.Handler
	fixtures *testutil.Fixtures
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:          config.JWTConfig{Secret: "test-secret-key-for-testing-only", Expiration: time.Hour},
		App:          config.AppConfig{Env: "test", PublicURL: "http://localhost:8080"},
		Quota:        config.QuotaConfig{MaxEvents: 5, MaxRegistrants: 100, MaxForms: 3, MaxReviewers: 2},
		Distribution: config.DistributionConfig{MaxPerReviewer: 5, MinReviewers: 1, MaxReviewers: 2, DeadlineDays: 14},
		Redis:        config.RedisConfig{DedupeTTL: time.Hour},
	}
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	containers := testutil.SetupTestContainers(t)
	t.Cleanup(func() { containers.Cleanup(t) })

	a := app.New(containers.DB, testConfig(), app.Options{})
	mux := http.NewServeMux()
	a.Router(t.TempDir()).Register(mux, a.AuthMiddleware())

	return &apiHarness{
		t:        t,
		app:      a,
		handler:  middleware.RequestMeta(mux),
		fixtures: testutil.SetupFixtures(t, containers.DB),
	}
}

// do sends a JSON request as user (nil for anonymous)
func (h *apiHarness) do(user *models.User, method, target string, body any) *testutil.TestResponse {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, _, err := h.app.Tokens.GenerateToken(auth.Subject{
			UserID:   user.ID,
			Email:    user.Email,
			Tipo:     user.Tipo,
			TenantID: user.TenantID,
		})
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res := testutil.NewTestResponse()
	h.handler.ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *testutil.TestResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

func TestToggleSubmissions(t *testing.T) {
	h := newHarness(t)
	owner := h.fixtures.Owner

	res := h.do(owner, http.MethodPost, "/toggle_submissao_trabalhos", nil)
	res.AssertStatus(t, http.StatusOK)
	first := decode[map[string]any](t, res)
	assert.Equal(t, true, first["value"])
	assert.Equal(t, "submissao_trabalhos is now enabled", first["message"])

	res = h.do(owner, http.MethodPost, "/toggle_submissao_trabalhos", nil)
	res.AssertStatus(t, http.StatusOK)
	assert.Equal(t, false, decode[map[string]any](t, res)["value"])

	t.Run("participant is rejected", func(t *testing.T) {
		h.do(h.fixtures.Participant, http.MethodPost, "/toggle_submissao_trabalhos", nil).
			AssertStatus(t, http.StatusForbidden)
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		h.do(nil, http.MethodPost, "/toggle_submissao_trabalhos", nil).
			AssertStatus(t, http.StatusUnauthorized)
	})

	t.Run("event scope leaves the tenant row alone", func(t *testing.T) {
		target := fmt.Sprintf("/toggle_feedback?evento_id=%d", h.fixtures.Event.ID)
		h.do(owner, http.MethodPost, target, nil).AssertStatus(t, http.StatusOK)

		res := h.do(owner, http.MethodGet, "/api/configuracao_cliente_atual", nil)
		res.AssertStatus(t, http.StatusOK)
		assert.Contains(t, res.Body.String(), `"habilitar_feedback":false`)
	})
}

func TestFormQuota(t *testing.T) {
	h := newHarness(t)
	tenantID := h.fixtures.Tenant.ID
	owner := h.fixtures.Owner

	// limits are admin-only
	h.do(owner, http.MethodPost, "/set_limite_formularios", map[string]any{"value": 10}).
		AssertStatus(t, http.StatusForbidden)

	target := fmt.Sprintf("/set_limite_formularios?cliente_id=%d", tenantID)
	h.do(h.fixtures.Admin, http.MethodPost, target, map[string]any{"value": 1}).
		AssertStatus(t, http.StatusOK)

	h.do(owner, http.MethodPost, "/api/v1/forms", map[string]any{"name": "Inscrição"}).
		AssertStatus(t, http.StatusCreated)

	res := h.do(owner, http.MethodPost, "/api/v1/forms", map[string]any{"name": "Avaliação"})
	res.AssertStatus(t, http.StatusForbidden)
	assert.Contains(t, res.Body.String(), "limit reached")

	count, err := h.app.Repos.Forms.CountByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	usage := h.do(owner, http.MethodGet, fmt.Sprintf("/api/v1/tenants/%d/usage", tenantID), nil)
	usage.AssertStatus(t, http.StatusOK)
	assert.Contains(t, usage.Body.String(), `"form":{"used":1,"limit":1}`)
}

func TestTenantDeactivation(t *testing.T) {
	h := newHarness(t)
	tenantID := h.fixtures.Tenant.ID
	active := fmt.Sprintf("/api/v1/admin/tenants/%d/active", tenantID)
	register := fmt.Sprintf("/api/v1/events/%d/registrations", h.fixtures.Event.ID)

	h.do(h.fixtures.Owner, http.MethodGet, "/api/v1/events", nil).AssertStatus(t, http.StatusOK)
	h.do(h.fixtures.Admin, http.MethodPut, active, map[string]any{"active": false}).AssertStatus(t, http.StatusOK)

	res := h.do(h.fixtures.Owner, http.MethodGet, "/api/v1/events", nil)
	res.AssertStatus(t, http.StatusForbidden)
	assert.Contains(t, res.Body.String(), "Tenant is inactive")
	h.do(h.fixtures.Participant, http.MethodPost, register, map[string]any{}).AssertStatus(t, http.StatusForbidden)

	// admins still manage suspended tenants
	h.do(h.fixtures.Admin, http.MethodGet, fmt.Sprintf("/api/v1/tenants/%d/usage", tenantID), nil).
		AssertStatus(t, http.StatusOK)

	h.do(h.fixtures.Admin, http.MethodPut, active, map[string]any{"active": true}).AssertStatus(t, http.StatusOK)
	h.do(h.fixtures.Owner, http.MethodGet, "/api/v1/events", nil).AssertStatus(t, http.StatusOK)
}

func TestUsageOfUnknownTenant(t *testing.T) {
	h := newHarness(t)

	h.do(h.fixtures.Admin, http.MethodGet, "/api/v1/tenants/999999/usage", nil).AssertStatus(t, http.StatusNotFound)
}

func TestTenantIsolation(t *testing.T) {
	h := newHarness(t)
	_, otherOwner := h.fixtures.CreateTenant(t)
	eventID := h.fixtures.Event.ID

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, fmt.Sprintf("/api/v1/events/%d/registrations", eventID)},
		{http.MethodGet, fmt.Sprintf("/api/v1/events/%d/submissions", eventID)},
		{http.MethodPost, fmt.Sprintf("/api/v1/events/%d/distribution", eventID)},
		{http.MethodGet, fmt.Sprintf("/api/v1/events/%d/distribution/logs", eventID)},
		{http.MethodGet, fmt.Sprintf("/api/configuracao_evento/%d", eventID)},
		{http.MethodPost, fmt.Sprintf("/toggle_checkin_global?evento_id=%d", eventID)},
		{http.MethodGet, fmt.Sprintf("/api/v1/tenants/%d/usage", h.fixtures.Tenant.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			h.do(otherOwner, tt.method, tt.target, nil).AssertStatus(t, http.StatusForbidden)
		})
	}

	t.Run("owner and admin pass", func(t *testing.T) {
		target := fmt.Sprintf("/api/v1/events/%d/registrations", eventID)
		h.do(h.fixtures.Owner, http.MethodGet, target, nil).AssertStatus(t, http.StatusOK)
		h.do(h.fixtures.Admin, http.MethodGet, target, nil).AssertStatus(t, http.StatusOK)
	})
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)

	res := h.do(nil, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":    "ana@example.com",
		"password": "Password123!",
		"name":     "Ana",
	})
	res.AssertStatus(t, http.StatusCreated)
	assert.NotContains(t, res.Body.String(), "password")

	h.do(nil, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":    "ana@example.com",
		"password": "Password123!",
		"name":     "Ana",
	}).AssertStatus(t, http.StatusConflict)

	h.do(nil, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "wrong-password",
	}).AssertStatus(t, http.StatusUnauthorized)

	res = h.do(nil, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "Password123!",
	})
	res.AssertStatus(t, http.StatusOK)
	login := decode[map[string]any](t, res)
	token, _ := login["access_token"].(string)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	me := testutil.NewTestResponse()
	h.handler.ServeHTTP(me, req)
	me.AssertStatus(t, http.StatusOK)
	assert.Equal(t, models.UserTypeParticipant, decode[map[string]any](t, me)["tipo"])
}

func TestCertificateEligibility_SelfService(t *testing.T) {
	h := newHarness(t)
	participant := h.fixtures.Participant
	eventID := h.fixtures.Event.ID

	// someone else's eligibility is only visible to the organiser
	other := h.fixtures.CreateUser(t, models.UserTypeParticipant)
	target := fmt.Sprintf("/api/v1/events/%d/certificates/eligibility?user_id=%d", eventID, other.ID)
	h.do(participant, http.MethodGet, target, nil).AssertStatus(t, http.StatusForbidden)
	h.do(h.fixtures.Owner, http.MethodGet, target, nil).AssertStatus(t, http.StatusOK)

	h.do(h.fixtures.Owner, http.MethodPut, fmt.Sprintf("/api/v1/events/%d/certificate-rules", eventID),
		map[string]any{"min_checkins": 1}).AssertStatus(t, http.StatusOK)

	issue := fmt.Sprintf("/api/v1/events/%d/certificates", eventID)
	res := h.do(participant, http.MethodPost, issue, nil)
	res.AssertStatus(t, http.StatusUnprocessableEntity)
	assert.Contains(t, res.Body.String(), "not registered")

	h.fixtures.CreateRegistration(t, eventID, participant)

	res = h.do(participant, http.MethodPost, issue, nil)
	res.AssertStatus(t, http.StatusUnprocessableEntity)
	assert.Contains(t, res.Body.String(), "minimum check-ins")

	h.do(h.fixtures.Owner, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/checkins", eventID),
		map[string]any{"user_id": participant.ID}).AssertStatus(t, http.StatusCreated)

	res = h.do(participant, http.MethodPost, issue, nil)
	res.AssertStatus(t, http.StatusCreated)
	cert := decode[map[string]any](t, res)
	code, _ := cert["verification_code"].(string)
	require.NotEmpty(t, code)

	h.do(participant, http.MethodPost, issue, nil).AssertStatus(t, http.StatusConflict)
	h.do(nil, http.MethodGet, "/api/v1/certificates/"+code, nil).AssertStatus(t, http.StatusOK)
}

func TestUserManagement(t *testing.T) {
	h := newHarness(t)
	participant := h.fixtures.Participant

	res := h.do(h.fixtures.Owner, http.MethodGet, "/api/v1/users", nil)
	res.AssertStatus(t, http.StatusOK)
	page := decode[map[string]any](t, res)
	assert.Equal(t, float64(1), page["total"])

	h.do(participant, http.MethodPut, "/api/v1/users/me/password", map[string]any{
		"current_password": "not-my-password",
		"new_password":     "AnotherPass1!",
	}).AssertStatus(t, http.StatusUnauthorized)

	h.do(participant, http.MethodPut, "/api/v1/users/me/password", map[string]any{
		"current_password": testutil.TestPassword,
		"new_password":     "AnotherPass1!",
	}).AssertStatus(t, http.StatusOK)

	target := fmt.Sprintf("/api/v1/admin/users/%d/active", participant.ID)
	h.do(h.fixtures.Owner, http.MethodPut, target, map[string]any{"active": false}).
		AssertStatus(t, http.StatusForbidden)
	h.do(h.fixtures.Admin, http.MethodPut, target, map[string]any{"active": false}).
		AssertStatus(t, http.StatusOK)

	// deactivated accounts are rejected even with a valid token
	h.do(participant, http.MethodGet, "/api/v1/auth/me", nil).AssertStatus(t, http.StatusForbidden)

	h.do(h.fixtures.Admin, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/active", h.fixtures.Admin.ID),
		map[string]any{"active": false}).AssertStatus(t, http.StatusBadRequest)
}
