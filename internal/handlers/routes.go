package handlers

import (
	"net/http"

	"evento/internal/middleware"
	"evento/internal/models"
	"evento/internal/service"
)

// Router bundles the handlers served by the API
type Router struct {
	Auth          *AuthHandler
	Config        *ConfigHandler
	Tenants       *TenantHandler
	Events        *EventHandler
	Certificates  *CertificateHandler
	Registrations *RegistrationHandler
	Reviewers     *ReviewerHandler
	Distribution  *DistributionHandler
	Audit         *AuditHandler
	Users         *UserHandler
}

// Register mounts every API route on mux
func (rt *Router) Register(mux *http.ServeMux, authMw *middleware.AuthMiddleware) {
	// any signed-in user
	user := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(h)
	}
	// tenant owners and admins
	client := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(middleware.RequireType(models.UserTypeClient)(h))
	}
	// admins only
	admin := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(middleware.RequireType()(h))
	}

	// Public routes
	mux.HandleFunc("POST "+AuthAPIBasePath+"/register", rt.Auth.Register)
	mux.HandleFunc("POST "+AuthAPIBasePath+"/login", rt.Auth.Login)
	mux.Handle("GET "+AuthAPIBasePath+"/me", user(rt.Auth.Me))
	mux.Handle("PUT /api/v1/users/me", user(rt.Users.UpdateProfile))
	mux.Handle("PUT /api/v1/users/me/password", user(rt.Users.ChangePassword))
	mux.HandleFunc("GET /api/v1/events/{id}", rt.Events.Get)
	mux.HandleFunc("GET /api/v1/events/{id}/workshops", rt.Events.ListWorkshops)
	mux.HandleFunc("GET /api/v1/certificates/{code}", rt.Certificates.Lookup)
	mux.HandleFunc("POST /webhooks/payments", rt.Registrations.PaymentWebhook)

	// Configuration flags and settings
	for _, name := range service.ToggleNames() {
		mux.Handle("POST /toggle_"+name, client(rt.Config.Toggle(name)))
	}
	for _, name := range service.SettingNames() {
		mux.Handle("POST /set_"+name, client(rt.Config.Set(name)))
	}
	mux.Handle("GET /api/configuracao_cliente_atual", client(rt.Config.CurrentTenant))
	mux.Handle("GET /api/configuracao_evento/{id}", client(rt.Config.Event))

	// Admin routes
	mux.Handle("POST /api/v1/admin/tenants", admin(rt.Tenants.Create))
	mux.Handle("GET /api/v1/admin/tenants", admin(rt.Tenants.List))
	mux.Handle("PUT /api/v1/admin/tenants/{id}/active", admin(rt.Tenants.SetActive))
	mux.Handle("GET /api/v1/admin/audit-logs", admin(rt.Audit.ListAuditLogs))
	mux.Handle("GET /api/v1/admin/users/{id}", admin(rt.Users.GetUser))
	mux.Handle("PUT /api/v1/admin/users/{id}/active", admin(rt.Users.UpdateUserActiveStatus))

	// Tenant routes
	mux.Handle("GET /api/v1/tenants/{id}/usage", client(rt.Tenants.Usage))
	mux.Handle("PUT /api/v1/payment-credentials/{id}", client(rt.Tenants.StoreCredential))
	mux.Handle("GET /api/v1/users", client(rt.Users.ListUsers))

	// Events, forms, workshops, check-ins
	mux.Handle("POST /api/v1/events", client(rt.Events.Create))
	mux.Handle("GET /api/v1/events", client(rt.Events.List))
	mux.Handle("PUT /api/v1/events/{id}/submissions", client(rt.Events.SetSubmissionWindow))
	mux.Handle("POST /api/v1/events/{id}/workshops", client(rt.Events.CreateWorkshop))
	mux.Handle("POST /api/v1/events/{id}/checkins", client(rt.Events.RecordCheckin))
	mux.Handle("PUT /api/v1/events/{id}/certificate-rules", client(rt.Events.SetCertificateRules))
	mux.Handle("POST /api/v1/forms", client(rt.Events.CreateForm))
	mux.Handle("GET /api/v1/forms", client(rt.Events.ListForms))

	// Registrations
	mux.Handle("POST /api/v1/events/{id}/registrations", user(rt.Registrations.Register))
	mux.Handle("GET /api/v1/events/{id}/registrations", client(rt.Registrations.List))

	// Certificates
	mux.Handle("GET /api/v1/events/{id}/certificates/eligibility", user(rt.Certificates.Verify))
	mux.Handle("POST /api/v1/events/{id}/certificates", user(rt.Certificates.Issue))
	mux.Handle("POST /api/v1/events/{id}/certificates/bulk", client(rt.Certificates.IssueForEvent))

	// Reviewers and submissions
	mux.Handle("POST /api/v1/reviewer-processes", client(rt.Reviewers.CreateProcess))
	mux.Handle("GET /api/v1/reviewer-processes", client(rt.Reviewers.ListProcesses))
	mux.Handle("POST /api/v1/reviewer-processes/{id}/candidatures", user(rt.Reviewers.Apply))
	mux.Handle("GET /api/v1/reviewer-processes/{id}/candidatures", client(rt.Reviewers.ListCandidatures))
	mux.Handle("PUT /api/v1/candidatures/{id}/decision", client(rt.Reviewers.Decide))
	mux.Handle("POST /api/v1/events/{id}/submissions", user(rt.Reviewers.Submit))
	mux.Handle("GET /api/v1/events/{id}/submissions", client(rt.Reviewers.ListSubmissions))
	mux.Handle("PUT /api/v1/submissions/{id}/decision", client(rt.Reviewers.DecideSubmission))
	mux.Handle("GET /api/v1/reviewer/assignments", user(rt.Reviewers.MyAssignments))
	mux.Handle("POST /api/v1/reviewer/assignments/{id}/complete", user(rt.Reviewers.CompleteAssignment))

	// Distribution
	mux.Handle("POST /api/v1/events/{id}/distribution", client(rt.Distribution.Run))
	mux.Handle("GET /api/v1/events/{id}/distribution/logs", client(rt.Distribution.Logs))
	mux.Handle("GET /api/v1/events/{id}/distribution/export", client(rt.Distribution.Export))
	mux.Handle("POST /api/v1/assignments/{id}/reassign", client(rt.Distribution.Reassign))
}
