package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"evento/internal/captcha"
	"evento/internal/models"
	"evento/internal/repository"
	"evento/pkg/validator"

	"github.com/google/uuid"
)

// CaptchaVerifier checks a CAPTCHA token
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// RegistrationInput is what a participant submits
type RegistrationInput struct {
	Name         string `json:"nome"`
	CPF          string `json:"cpf"`
	Email        string `json:"email"`
	Phone        string `json:"telefone"`
	Institution  string `json:"instituicao"`
	CaptchaToken string `json:"captcha_token"`
}

// RegistrationResult is a created registration plus the checkout link of a paid event
type RegistrationResult struct {
	Registration *models.Registration `json:"registration"`
	InitPoint    string               `json:"init_point,omitempty"`
}

// RegistrationService enrols participants in events
type RegistrationService struct {
	events        EventLookup
	tenants       TenantLookup
	registrations RegistrationStore
	configs       *ConfigService
	quotas        *QuotaService
	captcha       CaptchaVerifier
	payments      *PaymentService
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(events EventLookup, tenants TenantLookup, registrations RegistrationStore, configs *ConfigService, quotas *QuotaService, captcha CaptchaVerifier, payments *PaymentService) *RegistrationService {
	return &RegistrationService{
		events:        events,
		tenants:       tenants,
		registrations: registrations,
		configs:       configs,
		quotas:        quotas,
		captcha:       captcha,
		payments:      payments,
	}
}

// Register enrols user in the event. Paid events return a checkout link and
// stay pending until the gateway confirms the payment.
func (s *RegistrationService) Register(ctx context.Context, user *models.User, eventID int64, in RegistrationInput, remoteIP string) (*RegistrationResult, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	tenant, err := s.tenants.GetByID(ctx, event.TenantID)
	if err != nil {
		return nil, translate(err, "tenant")
	}
	if !tenant.IsActive {
		return nil, fmt.Errorf("event %d is not accepting registrations: %w", event.ID, ErrForbidden)
	}

	if _, err := s.registrations.GetByUserEvent(ctx, user.ID, event.ID); err == nil {
		return nil, fmt.Errorf("registration: %w", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := s.captcha.Verify(ctx, in.CaptchaToken, remoteIP); err != nil {
		if errors.Is(err, captcha.ErrRejected) {
			return nil, validationError("captcha verification failed")
		}
		return nil, fmt.Errorf("captcha: %w", ErrExternalService)
	}

	cfg, err := s.configs.Effective(ctx, event.TenantID, &event.ID)
	if err != nil {
		return nil, err
	}
	in = normalize(in)
	if err := checkRequired(cfg, in); err != nil {
		return nil, err
	}

	if err := s.quotas.Check(ctx, event.TenantID, QuotaRegistrant); err != nil {
		return nil, err
	}

	reg := &models.Registration{
		EventID:       event.ID,
		UserID:        user.ID,
		Name:          in.Name,
		CPF:           in.CPF,
		Email:         in.Email,
		Phone:         in.Phone,
		Institution:   in.Institution,
		PaymentStatus: models.PaymentStatusFree,
	}
	if reg.Email == "" {
		reg.Email = user.Email
	}

	result := &RegistrationResult{Registration: reg}
	if event.IsPaid() {
		ref := uuid.NewString()
		reg.PaymentStatus = models.PaymentStatusPending
		reg.ExternalReference = &ref

		checkout, err := s.payments.Checkout(ctx, event, reg)
		if err != nil {
			return nil, err
		}
		result.InitPoint = checkout.InitPoint
	}

	if err := s.registrations.Create(ctx, reg); err != nil {
		return nil, translate(err, "registration")
	}
	return result, nil
}

// List returns the registrations of an event
func (s *RegistrationService) List(ctx context.Context, eventID int64) ([]models.Registration, error) {
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	return regs, nil
}

func normalize(in RegistrationInput) RegistrationInput {
	in.Name = validator.SanitizeString(in.Name)
	in.Email = validator.SanitizeEmail(in.Email)
	in.Phone = validator.SanitizeString(in.Phone)
	in.Institution = validator.SanitizeString(in.Institution)
	in.CPF = validator.NormalizeCPF(in.CPF)
	return in
}

// checkRequired enforces the obrigatorio_* flags and validates the fields that are present
func checkRequired(cfg *models.TenantConfig, in RegistrationInput) error {
	var missing []string
	if cfg.ObrigatorioNome && in.Name == "" {
		missing = append(missing, "nome")
	}
	if cfg.ObrigatorioCPF && in.CPF == "" {
		missing = append(missing, "cpf")
	}
	if cfg.ObrigatorioEmail && in.Email == "" {
		missing = append(missing, "email")
	}
	if cfg.ObrigatorioTelefone && in.Phone == "" {
		missing = append(missing, "telefone")
	}
	if cfg.ObrigatorioInstituicao && in.Institution == "" {
		missing = append(missing, "instituicao")
	}
	if len(missing) > 0 {
		return validationError("missing required fields: %s", strings.Join(missing, ", "))
	}

	if in.CPF != "" {
		if err := validator.ValidateCPF(in.CPF); err != nil {
			return validationError("cpf: %s", err)
		}
	}
	if in.Email != "" {
		if err := validator.ValidateEmail(in.Email); err != nil {
			return validationError("email: %s", err)
		}
	}
	return nil
}
