package service

import (
	"context"
	"fmt"

	"evento/internal/auth"
	"evento/internal/models"
	"evento/pkg/validator"
)

// TenantStore is the tenant persistence the tenant service needs
type TenantStore interface {
	CreateWithOwner(ctx context.Context, tenant *models.Tenant, owner *models.User) error
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// CreateTenantInput describes a new tenant and its client account
type CreateTenantInput struct {
	Name          string `json:"name" validate:"required"`
	OwnerName     string `json:"owner_name" validate:"required"`
	OwnerEmail    string `json:"owner_email" validate:"required,email"`
	OwnerPassword string `json:"owner_password" validate:"required,min=8"`
}

// TenantService manages client organisations
type TenantService struct {
	tenants TenantStore
	configs *ConfigService
	authSvc *auth.Service
	audit   Auditor
}

// NewTenantService creates a new tenant service
func NewTenantService(tenants TenantStore, configs *ConfigService, authSvc *auth.Service, audit Auditor) *TenantService {
	return &TenantService{tenants: tenants, configs: configs, authSvc: authSvc, audit: audit}
}

// Create creates a tenant with its owner and its default configuration row
func (s *TenantService) Create(ctx context.Context, actor *models.User, in CreateTenantInput) (*models.Tenant, *models.User, error) {
	if !actor.IsAdmin() {
		return nil, nil, ErrForbidden
	}
	in.OwnerEmail = validator.SanitizeEmail(in.OwnerEmail)
	if err := validator.ValidateStruct(&in); err != nil {
		return nil, nil, validationError("%s", err)
	}

	hash, err := s.authSvc.HashPassword(in.OwnerPassword)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tenant := &models.Tenant{Name: validator.SanitizeString(in.Name)}
	owner := &models.User{
		Email:        in.OwnerEmail,
		PasswordHash: hash,
		Name:         validator.SanitizeString(in.OwnerName),
	}
	if err := s.tenants.CreateWithOwner(ctx, tenant, owner); err != nil {
		return nil, nil, translate(err, "create tenant")
	}

	if _, err := s.configs.Effective(ctx, tenant.ID, nil); err != nil {
		return nil, nil, err
	}

	s.audit.Log(ctx, &actor.ID, AuditTenantCreated, "tenant", "tenant=%d name=%q owner=%d", tenant.ID, tenant.Name, owner.ID)
	return tenant, owner, nil
}

// List returns every tenant
func (s *TenantService) List(ctx context.Context, actor *models.User) ([]models.Tenant, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, err
	}
	if tenants == nil {
		tenants = []models.Tenant{}
	}
	return tenants, nil
}

// SetActive activates or deactivates a tenant
func (s *TenantService) SetActive(ctx context.Context, actor *models.User, id int64, active bool) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.tenants.SetActive(ctx, id, active); err != nil {
		return translate(err, "tenant")
	}
	s.audit.Log(ctx, &actor.ID, AuditTenantActivity, "tenant", "tenant=%d active=%t", id, active)
	return nil
}
