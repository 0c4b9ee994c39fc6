package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evento/internal/auth"
	"evento/internal/models"
	"evento/internal/repository"
	"evento/pkg/validator"
)

// AccountStore is the user persistence the auth service needs
type AccountStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

// AuthService handles authentication business logic
type AuthService struct {
	users   AccountStore
	authSvc *auth.Service
}

// NewAuthService creates a new authentication service
func NewAuthService(users AccountStore, authSvc *auth.Service) *AuthService {
	return &AuthService{users: users, authSvc: authSvc}
}

// Register creates a participant account
func (s *AuthService) Register(ctx context.Context, email, password, name, cpf string) (*models.User, error) {
	email = validator.SanitizeEmail(email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, validationError("%s", err)
	}
	if err := validator.ValidatePassword(password); err != nil {
		return nil, validationError("%s", err)
	}
	if err := validator.ValidateRequired("name", name); err != nil {
		return nil, validationError("%s", err)
	}
	if cpf != "" {
		if err := validator.ValidateCPF(cpf); err != nil {
			return nil, validationError("cpf: %s", err)
		}
		cpf = validator.NormalizeCPF(cpf)
	}

	hash, err := s.authSvc.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         validator.SanitizeString(name),
		CPF:          cpf,
		Tipo:         models.UserTypeParticipant,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and returns a signed token
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, validator.SanitizeEmail(email))
	if err != nil {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	if err := s.authSvc.VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", time.Time{}, nil, ErrUserInactive
	}

	token, expiresAt, err := s.authSvc.GenerateToken(auth.Subject{
		UserID:   user.ID,
		Email:    user.Email,
		Tipo:     user.Tipo,
		TenantID: user.TenantID,
	})
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("Failed to update last login", "user_id", user.ID, "error", err)
	}
	return token, expiresAt, user, nil
}

// CurrentUser loads the user behind a validated token
func (s *AuthService) CurrentUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}
