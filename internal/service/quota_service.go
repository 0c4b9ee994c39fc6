package service

import (
	"context"
	"fmt"

	"evento/internal/metrics"
	"evento/internal/models"
)

// QuotaKind names a tenant-limited resource
type QuotaKind string

const (
	QuotaEvent      QuotaKind = "event"
	QuotaRegistrant QuotaKind = "registrant"
	QuotaForm       QuotaKind = "form"
	QuotaReviewer   QuotaKind = "reviewer"
)

// QuotaKinds lists every limited resource
var QuotaKinds = []QuotaKind{QuotaEvent, QuotaRegistrant, QuotaForm, QuotaReviewer}

// QuotaError is returned when a tenant has reached a limit. It matches
// ErrQuotaExceeded with errors.Is.
type QuotaError struct {
	Kind  QuotaKind
	Used  int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s limit reached (%d of %d)", e.Kind, e.Used, e.Limit)
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

// Usage is the current count and limit of one resource kind
type Usage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// QuotaService decides whether a tenant may create another resource.
// Counts are read from live rows on every call; the check and the following
// insert are not isolated from concurrent requests.
type QuotaService struct {
	configs     *ConfigService
	events      Counter
	registrants Counter
	forms       Counter
	reviewers   ReviewerCounter
	audit       Auditor
}

// NewQuotaService creates a new quota service
func NewQuotaService(configs *ConfigService, events, registrants, forms Counter, reviewers ReviewerCounter, audit Auditor) *QuotaService {
	return &QuotaService{
		configs:     configs,
		events:      events,
		registrants: registrants,
		forms:       forms,
		reviewers:   reviewers,
		audit:       audit,
	}
}

// Check returns a *QuotaError when the tenant has no room left for kind
func (s *QuotaService) Check(ctx context.Context, tenantID int64, kind QuotaKind) error {
	usage, err := s.usage(ctx, tenantID, kind)
	if err != nil {
		return err
	}
	if usage.Used >= usage.Limit {
		metrics.ObserveQuotaRejection(string(kind))
		s.audit.Log(ctx, nil, AuditQuotaRejected, "tenant", "tenant=%d kind=%s used=%d limit=%d",
			tenantID, kind, usage.Used, usage.Limit)
		return &QuotaError{Kind: kind, Used: usage.Used, Limit: usage.Limit}
	}
	return nil
}

// Usage reports count and limit for every kind
func (s *QuotaService) Usage(ctx context.Context, tenantID int64) (map[QuotaKind]Usage, error) {
	out := make(map[QuotaKind]Usage, len(QuotaKinds))
	for _, kind := range QuotaKinds {
		u, err := s.usage(ctx, tenantID, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = u
	}
	return out, nil
}

func (s *QuotaService) usage(ctx context.Context, tenantID int64, kind QuotaKind) (Usage, error) {
	cfg, err := s.configs.Effective(ctx, tenantID, nil)
	if err != nil {
		return Usage{}, err
	}

	var used int
	switch kind {
	case QuotaEvent:
		used, err = s.events.CountByTenant(ctx, tenantID)
	case QuotaRegistrant:
		used, err = s.registrants.CountByTenant(ctx, tenantID)
	case QuotaForm:
		used, err = s.forms.CountByTenant(ctx, tenantID)
	case QuotaReviewer:
		used, err = s.reviewers.CountApprovedByTenant(ctx, tenantID)
	default:
		return Usage{}, validationError("unknown quota kind %q", kind)
	}
	if err != nil {
		return Usage{}, fmt.Errorf("count %s: %w", kind, err)
	}
	return Usage{Used: used, Limit: limitFor(cfg, kind)}, nil
}

func limitFor(cfg *models.TenantConfig, kind QuotaKind) int {
	switch kind {
	case QuotaEvent:
		return cfg.LimiteEventos
	case QuotaRegistrant:
		return cfg.LimiteInscritos
	case QuotaForm:
		return cfg.LimiteFormularios
	case QuotaReviewer:
		return cfg.LimiteRevisores
	}
	return 0
}
