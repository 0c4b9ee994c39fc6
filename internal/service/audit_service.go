package service

import (
	"context"
	"fmt"
	"log/slog"

	"evento/internal/models"
	"evento/internal/repository"
)

// Audit actions
const (
	AuditConfigToggled     = "config.toggled"
	AuditConfigSet         = "config.set"
	AuditQuotaRejected     = "quota.rejected"
	AuditDistributionRun   = "distribution.run"
	AuditReviewerReplaced  = "distribution.reassigned"
	AuditCertificateIssued = "certificate.issued"
	AuditTenantCreated     = "tenant.created"
	AuditTenantActivity    = "tenant.activity"
	AuditPaymentUpdated    = "payment.updated"
	AuditCredentialStored  = "payment.credential_stored"
	AuditUserRegistered    = "user.register"
	AuditUserLogin         = "user.login"
	AuditLoginFailed       = "user.login.failed"
)

// AuditService handles audit logging
type AuditService struct {
	auditRepo *repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo *repository.AuditRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// Log writes an audit entry. Failures are logged and never fail the caller.
func (s *AuditService) Log(ctx context.Context, userID *int64, action, resource string, details string, args ...any) {
	if len(args) > 0 {
		details = fmt.Sprintf(details, args...)
	}
	err := s.auditRepo.Create(ctx, &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: clientIP(ctx),
		UserAgent: userAgent(ctx),
	})
	if err != nil {
		slog.Error("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}

// List returns audit entries, newest first
func (s *AuditService) List(ctx context.Context, userID *int64, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.auditRepo.List(ctx, userID, limit, offset)
}

type requestMetaKey struct{}

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequestMeta attaches the caller's address and user agent to ctx so
// audit entries written further down can record them.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ip: ip, userAgent: userAgent})
}

func clientIP(ctx context.Context) string {
	m, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return m.ip
}

func userAgent(ctx context.Context) string {
	m, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return m.userAgent
}

func ptr[T any](v T) *T { return &v }
