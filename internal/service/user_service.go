package service

import (
	"context"
	"errors"
	"fmt"

	"evento/internal/auth"
	"evento/internal/models"
	"evento/internal/repository"
	"evento/pkg/validator"
)

// Audit actions of account management
const (
	AuditProfileUpdated  = "user.profile.update"
	AuditPasswordChanged = "user.password.change"
	AuditPasswordFailed  = "user.password.change.failed"
	AuditUserStatus      = "user.status.update"
)

// UserStore is the user persistence account management needs
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, f repository.UserFilters, limit, offset int) ([]models.User, error)
	Count(ctx context.Context, f repository.UserFilters) (int, error)
	CountActiveAdmins(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, id int64, name, cpf string) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// UserPage is one page of a user listing
type UserPage struct {
	Users      []models.User `json:"users"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

// UserService manages accounts: self-service profile and password changes
// and the admin user listing
type UserService struct {
	users  UserStore
	hasher *auth.Service
	audit  Auditor
}

// NewUserService creates a new user service
func NewUserService(users UserStore, hasher *auth.Service, audit Auditor) *UserService {
	return &UserService{users: users, hasher: hasher, audit: audit}
}

// UpdateProfile changes the caller's name and CPF
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, name, cpf string) (*models.User, error) {
	name = validator.SanitizeString(name)
	if err := validator.ValidateRequired("name", name); err != nil {
		return nil, validationError("%s", err)
	}
	if cpf != "" {
		if err := validator.ValidateCPF(cpf); err != nil {
			return nil, validationError("cpf: %s", err)
		}
		cpf = validator.NormalizeCPF(cpf)
	}

	if err := s.users.UpdateProfile(ctx, actor.ID, name, cpf); err != nil {
		return nil, translate(err, "user")
	}
	s.audit.Log(ctx, &actor.ID, AuditProfileUpdated, "users", "Profile updated")

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *UserService) ChangePassword(ctx context.Context, actor *models.User, current, next string) error {
	if err := validator.ValidatePassword(next); err != nil {
		return validationError("%s", err)
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return translate(err, "user")
	}
	if err := s.hasher.VerifyPassword(user.PasswordHash, current); err != nil {
		s.audit.Log(ctx, &actor.ID, AuditPasswordFailed, "users", "Incorrect current password")
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, actor.ID, hash); err != nil {
		return translate(err, "user")
	}
	s.audit.Log(ctx, &actor.ID, AuditPasswordChanged, "users", "Password changed")
	return nil
}

// List returns one page of users. Clients only see their own tenant.
func (s *UserService) List(ctx context.Context, actor *models.User, f repository.UserFilters, page, limit int) (*UserPage, error) {
	if !actor.IsAdmin() {
		tenantID, err := managedTenant(actor, f.TenantID)
		if err != nil {
			return nil, err
		}
		f.TenantID = &tenantID
	}

	total, err := s.users.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, f, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Get returns one user (admins only)
func (s *UserService) Get(ctx context.Context, actor *models.User, id int64) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

// SetActive activates or deactivates an account (admins only). The last
// active admin cannot be deactivated, and nobody can deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, actor *models.User, id int64, active bool) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return translate(err, "user")
	}

	if !active {
		if user.ID == actor.ID {
			return validationError("you cannot deactivate your own account")
		}
		if user.IsAdmin() && user.IsActive {
			n, err := s.users.CountActiveAdmins(ctx)
			if err != nil {
				return err
			}
			if n <= 1 {
				return validationError("cannot deactivate the last active admin")
			}
		}
	}

	if err := s.users.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return err
	}

	status := "inactive"
	if active {
		status = "active"
	}
	s.audit.Log(ctx, &actor.ID, AuditUserStatus, "users", "User %s status changed to %s", user.Email, status)
	return nil
}
