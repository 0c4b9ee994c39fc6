package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"evento/internal/metrics"
	"evento/internal/models"
	"evento/internal/repository"

	"github.com/google/uuid"
)

// EligibilityError carries the criteria a participant still misses. It
// matches ErrNotEligible with errors.Is.
type EligibilityError struct {
	Pending []string
}

func (e *EligibilityError) Error() string {
	return "not eligible: " + strings.Join(e.Pending, "; ")
}

func (e *EligibilityError) Is(target error) bool { return target == ErrNotEligible }

// BulkIssueResult summarises IssueForEvent
type BulkIssueResult struct {
	Considered    int `json:"considered"`
	Issued        int `json:"issued"`
	AlreadyIssued int `json:"already_issued"`
	Ineligible    int `json:"ineligible"`
	Failed        int `json:"failed"`
}

// CertificateService checks eligibility and issues certificates
type CertificateService struct {
	store         CertificateStore
	checkins      CheckinSource
	events        EventLookup
	registrations RegistrationStore
	configs       *ConfigService
	audit         Auditor
}

// NewCertificateService creates a new certificate service
func NewCertificateService(store CertificateStore, checkins CheckinSource, events EventLookup, registrations RegistrationStore, configs *ConfigService, audit Auditor) *CertificateService {
	return &CertificateService{
		store:         store,
		checkins:      checkins,
		events:        events,
		registrations: registrations,
		configs:       configs,
		audit:         audit,
	}
}

// Verify reports whether the user meets the certificate rules of the event.
// An event without rules accepts everyone. Every unmet criterion is reported.
func (s *CertificateService) Verify(ctx context.Context, userID, eventID int64) (bool, []string, error) {
	cfg, err := s.store.GetConfig(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, []string{}, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("load certificate rules: %w", err)
	}

	workshops, err := s.checkins.ListWorkshops(ctx, eventID)
	if err != nil {
		return false, nil, err
	}
	checkins, err := s.checkins.ListByUserEvent(ctx, userID, eventID)
	if err != nil {
		return false, nil, err
	}

	pending := EvaluateEligibility(cfg, workshops, checkins)
	return len(pending) == 0, pending, nil
}

// EvaluateEligibility returns the unmet criteria of cfg for a check-in
// history. The attendance percentage does not apply to events without
// workshops.
func EvaluateEligibility(cfg *models.CertificateConfig, workshops []models.Workshop, checkins []models.Checkin) []string {
	pending := []string{}

	if len(checkins) < cfg.MinCheckins {
		pending = append(pending, fmt.Sprintf("minimum check-ins: %d required, %d recorded", cfg.MinCheckins, len(checkins)))
	}

	attended := make(map[int64]bool)
	for _, c := range checkins {
		if c.WorkshopID != nil {
			attended[*c.WorkshopID] = true
		}
	}

	names := make(map[int64]string, len(workshops))
	for _, w := range workshops {
		names[w.ID] = w.Name
	}
	for _, id := range cfg.RequiredWorkshopIDs {
		if attended[id] {
			continue
		}
		if name, ok := names[id]; ok {
			pending = append(pending, fmt.Sprintf("mandatory workshop not attended: %s (#%d)", name, id))
		} else {
			pending = append(pending, fmt.Sprintf("mandatory workshop not attended: #%d", id))
		}
	}

	if cfg.MinAttendancePercent > 0 && len(workshops) > 0 {
		distinct := 0
		for _, w := range workshops {
			if attended[w.ID] {
				distinct++
			}
		}
		pct := float64(distinct) / float64(len(workshops)) * 100
		if pct < cfg.MinAttendancePercent {
			pending = append(pending, fmt.Sprintf("workshop attendance: %.1f%% required, %.1f%% reached (%d of %d)",
				cfg.MinAttendancePercent, pct, distinct, len(workshops)))
		}
	}

	return pending
}

// Issue releases a certificate of the given type after checking
// eligibility. A released certificate is never issued twice.
func (s *CertificateService) Issue(ctx context.Context, actorID *int64, userID, eventID int64, tipo string) (*models.Certificate, error) {
	if tipo == "" {
		tipo = models.CertificateTypeParticipant
	}
	if tipo != models.CertificateTypeParticipant && tipo != models.CertificateTypeIndividual {
		return nil, validationError("unknown certificate type %q", tipo)
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	if tipo == models.CertificateTypeIndividual {
		cfg, err := s.configs.Effective(ctx, event.TenantID, &event.ID)
		if err != nil {
			return nil, err
		}
		if !cfg.HabilitarCertificadoIndividual {
			return nil, fmt.Errorf("individual certificates are disabled for event %d: %w", event.ID, ErrForbidden)
		}
	}

	if err := s.requireConfirmedRegistration(ctx, userID, eventID); err != nil {
		metrics.ObserveCertificate(tipo, "ineligible")
		return nil, err
	}

	ok, pending, err := s.Verify(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.ObserveCertificate(tipo, "ineligible")
		return nil, &EligibilityError{Pending: pending}
	}

	if _, err := s.store.FindReleased(ctx, userID, eventID, tipo); err == nil {
		metrics.ObserveCertificate(tipo, "duplicate")
		return nil, ErrCertificateAlreadyIssued
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	cert := &models.Certificate{
		UserID:           userID,
		EventID:          eventID,
		Tipo:             tipo,
		VerificationCode: uuid.NewString(),
	}
	if err := s.store.Create(ctx, cert); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.ObserveCertificate(tipo, "duplicate")
			return nil, ErrCertificateAlreadyIssued
		}
		return nil, err
	}

	metrics.ObserveCertificate(tipo, "issued")
	s.audit.Log(ctx, actorID, AuditCertificateIssued, "certificate", "user=%d event=%d tipo=%s code=%s",
		userID, eventID, tipo, cert.VerificationCode)
	return cert, nil
}

// requireConfirmedRegistration accepts a user registered for the event whose
// registration is free or paid
func (s *CertificateService) requireConfirmedRegistration(ctx context.Context, userID, eventID int64) error {
	reg, err := s.registrations.GetByUserEvent(ctx, userID, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return &EligibilityError{Pending: []string{"not registered for the event"}}
	}
	if err != nil {
		return err
	}
	if !reg.Confirmed() {
		return &EligibilityError{Pending: []string{"registration payment is " + reg.PaymentStatus}}
	}
	return nil
}

// IssueForEvent issues certificates to every eligible registrant whose
// registration is free or paid. It runs synchronously.
func (s *CertificateService) IssueForEvent(ctx context.Context, actorID *int64, eventID int64, tipo string) (*BulkIssueResult, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, translate(err, "event")
	}
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	res := &BulkIssueResult{}
	for _, reg := range regs {
		if !reg.Confirmed() {
			continue
		}
		res.Considered++
		_, err := s.Issue(ctx, actorID, reg.UserID, eventID, tipo)
		switch {
		case err == nil:
			res.Issued++
		case errors.Is(err, ErrCertificateAlreadyIssued):
			res.AlreadyIssued++
		case errors.Is(err, ErrNotEligible):
			res.Ineligible++
		case errors.Is(err, ErrForbidden), errors.Is(err, ErrValidation):
			return nil, err
		default:
			res.Failed++
			slog.Error("Failed to issue certificate", "event_id", eventID, "user_id", reg.UserID, "error", err)
		}
	}
	return res, nil
}

// Lookup finds a certificate by its verification code
func (s *CertificateService) Lookup(ctx context.Context, code string) (*models.Certificate, error) {
	if _, err := uuid.Parse(code); err != nil {
		return nil, validationError("malformed verification code")
	}
	cert, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, translate(err, "certificate")
	}
	return cert, nil
}
