// Package app assembles repositories and services from configuration. The
// API server, the ops CLI and the integration tests share it.
package app

import (
	"database/sql"

	"evento/internal/auth"
	"evento/internal/captcha"
	"evento/internal/config"
	"evento/internal/email"
	"evento/internal/handlers"
	"evento/internal/middleware"
	"evento/internal/payment"
	"evento/internal/repository"
	"evento/internal/service"
)

// Options carries the optional collaborators. Nil fields fall back to the
// configured defaults or disable the feature.
type Options struct {
	Cipher   service.Cipher          // Vault transit, nil disables per-tenant credentials
	Deduper  service.Deduper         // Redis, nil disables webhook dedupe
	Provider payment.Provider        // defaults to Mercado Pago
	Captcha  service.CaptchaVerifier // defaults to reCAPTCHA
	Notifier service.Notifier        // defaults to SMTP
}

// Repositories are the database repositories
type Repositories struct {
	Users         *repository.UserRepository
	Tenants       *repository.TenantRepository
	Configs       *repository.ConfigRepository
	Events        *repository.EventRepository
	Forms         *repository.FormRepository
	Checkins      *repository.CheckinRepository
	Certificates  *repository.CertificateRepository
	Registrations *repository.RegistrationRepository
	Reviewers     *repository.ReviewerRepository
	Submissions   *repository.SubmissionRepository
	Assignments   *repository.AssignmentRepository
	Credentials   *repository.PaymentCredentialRepository
	Audit         *repository.AuditRepository
}

// App holds the assembled services
type App struct {
	Config *config.Config
	Repos  Repositories
	Mailer *email.Service
	Tokens *auth.Service

	Audit         *service.AuditService
	Auth          *service.AuthService
	Users         *service.UserService
	Configs       *service.ConfigService
	Quotas        *service.QuotaService
	Tenants       *service.TenantService
	Events        *service.EventService
	Certificates  *service.CertificateService
	Payments      *service.PaymentService
	Registrations *service.RegistrationService
	Reviewers     *service.ReviewerService
	Distribution  *service.DistributionService
}

// New wires every repository and service on top of db
func New(db *sql.DB, cfg *config.Config, opts Options) *App {
	repos := Repositories{
		Users:   repository.NewUserRepository(db),
		Tenants: repository.NewTenantRepository(db),
		Configs: repository.NewConfigRepository(db, repository.ConfigDefaults{
			LimiteEventos:          cfg.Quota.MaxEvents,
			LimiteInscritos:        cfg.Quota.MaxRegistrants,
			LimiteFormularios:      cfg.Quota.MaxForms,
			LimiteRevisores:        cfg.Quota.MaxReviewers,
			MaxTrabalhosPorRevisor: cfg.Distribution.MaxPerReviewer,
			NumRevisoresMin:        cfg.Distribution.MinReviewers,
			NumRevisoresMax:        cfg.Distribution.MaxReviewers,
			PrazoRevisaoDias:       cfg.Distribution.DeadlineDays,
		}),
		Events:        repository.NewEventRepository(db),
		Forms:         repository.NewFormRepository(db),
		Checkins:      repository.NewCheckinRepository(db),
		Certificates:  repository.NewCertificateRepository(db),
		Registrations: repository.NewRegistrationRepository(db),
		Reviewers:     repository.NewReviewerRepository(db),
		Submissions:   repository.NewSubmissionRepository(db),
		Assignments:   repository.NewAssignmentRepository(db),
		Credentials:   repository.NewPaymentCredentialRepository(db),
		Audit:         repository.NewAuditRepository(db),
	}

	a := &App{
		Config: cfg,
		Repos:  repos,
		Mailer: email.NewService(&cfg.Email, cfg.App.PublicURL),
		Tokens: auth.NewService(&cfg.JWT),
	}

	if opts.Provider == nil {
		opts.Provider = payment.NewMercadoPago(cfg.Payment)
	}
	if opts.Captcha == nil {
		opts.Captcha = captcha.NewVerifier(cfg.Captcha)
	}
	if opts.Notifier == nil {
		opts.Notifier = a.Mailer
	}

	a.Audit = service.NewAuditService(repos.Audit)
	a.Auth = service.NewAuthService(repos.Users, a.Tokens)
	a.Users = service.NewUserService(repos.Users, a.Tokens, a.Audit)
	a.Configs = service.NewConfigService(repos.Configs, repos.Tenants, repos.Events, a.Audit)
	a.Quotas = service.NewQuotaService(a.Configs, repos.Events, repos.Registrations, repos.Forms, repos.Reviewers, a.Audit)
	a.Tenants = service.NewTenantService(repos.Tenants, a.Configs, a.Tokens, a.Audit)
	a.Events = service.NewEventService(repos.Events, repos.Forms, repos.Checkins, repos.Certificates, a.Configs, a.Quotas)
	a.Certificates = service.NewCertificateService(repos.Certificates, repos.Checkins, repos.Events, repos.Registrations, a.Configs, a.Audit)
	a.Payments = service.NewPaymentService(opts.Provider, repos.Credentials, opts.Cipher, opts.Deduper,
		repos.Registrations, repos.Events, a.Audit, service.PaymentOptions{
			PlatformToken:   cfg.Payment.AccessToken,
			NotificationURL: cfg.Payment.NotificationURL,
			DedupeTTL:       cfg.Redis.DedupeTTL,
		})
	a.Registrations = service.NewRegistrationService(repos.Events, repos.Tenants, repos.Registrations, a.Configs, a.Quotas, opts.Captcha, a.Payments)
	a.Reviewers = service.NewReviewerService(repos.Reviewers, repos.Submissions, repos.Assignments, repos.Events, a.Configs, a.Quotas)
	a.Distribution = service.NewDistributionService(repos.Events, repos.Submissions, repos.Assignments, repos.Reviewers,
		repos.Users, a.Configs, opts.Notifier, a.Audit)

	return a
}

// Router builds the HTTP handlers. Distribution reports go to reportDir.
func (a *App) Router(reportDir string) *handlers.Router {
	return &handlers.Router{
		Auth:          handlers.NewAuthHandler(a.Auth, a.Audit),
		Config:        handlers.NewConfigHandler(a.Configs),
		Tenants:       handlers.NewTenantHandler(a.Tenants, a.Quotas, a.Payments),
		Events:        handlers.NewEventHandler(a.Events),
		Certificates:  handlers.NewCertificateHandler(a.Certificates, a.Events),
		Registrations: handlers.NewRegistrationHandler(a.Registrations, a.Payments, a.Events),
		Reviewers:     handlers.NewReviewerHandler(a.Reviewers),
		Distribution:  handlers.NewDistributionHandler(a.Distribution, a.Events, reportDir),
		Audit:         handlers.NewAuditHandler(a.Audit),
		Users:         handlers.NewUserHandler(a.Users),
	}
}

// AuthMiddleware validates tokens against this app's signing key and users
func (a *App) AuthMiddleware() *middleware.AuthMiddleware {
	return middleware.NewAuthMiddleware(a.Tokens, a.Repos.Users, a.Repos.Tenants)
}
