package service

import (
	"context"
	"fmt"
	"time"

	"evento/internal/models"
	"evento/pkg/validator"
)

// EventStore is the event persistence the event service needs
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]models.Event, error)
	SetSubmissionsOpen(ctx context.Context, id int64, open bool) error
}

// FormStore is the form persistence the event service needs
type FormStore interface {
	Create(ctx context.Context, form *models.Form) error
	ListByTenant(ctx context.Context, tenantID int64) ([]models.Form, error)
}

// CheckinStore is the workshop and check-in persistence
type CheckinStore interface {
	CheckinSource
	CreateWorkshop(ctx context.Context, w *models.Workshop) error
	Create(ctx context.Context, c *models.Checkin) error
}

// CertificateRules stores the eligibility rules of events
type CertificateRules interface {
	GetConfig(ctx context.Context, eventID int64) (*models.CertificateConfig, error)
	UpsertConfig(ctx context.Context, c *models.CertificateConfig) error
}

// EventInput describes a new event
type EventInput struct {
	Name           string     `json:"name" validate:"required"`
	Description    string     `json:"description"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	ValorInscricao int64      `json:"valor_inscricao"`
	TenantID       *int64     `json:"cliente_id"`
}

// EventService manages events and everything hanging off them
type EventService struct {
	events   EventStore
	forms    FormStore
	checkins CheckinStore
	rules    CertificateRules
	configs  *ConfigService
	quotas   *QuotaService
}

// NewEventService creates a new event service
func NewEventService(events EventStore, forms FormStore, checkins CheckinStore, rules CertificateRules, configs *ConfigService, quotas *QuotaService) *EventService {
	return &EventService{
		events:   events,
		forms:    forms,
		checkins: checkins,
		rules:    rules,
		configs:  configs,
		quotas:   quotas,
	}
}

// Managed loads an event the actor may manage: its tenant's owner or an admin
func (s *EventService) Managed(ctx context.Context, actor *models.User, eventID int64) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	if !actor.IsAdmin() && !actor.OwnsTenant(event.TenantID) {
		return nil, fmt.Errorf("event %d: %w", event.ID, ErrForbidden)
	}
	return event, nil
}

// Get loads an event
func (s *EventService) Get(ctx context.Context, eventID int64) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	return event, nil
}

// managedTenant resolves the tenant an actor acts for
func managedTenant(actor *models.User, requested *int64) (int64, error) {
	switch {
	case requested != nil && (actor.IsAdmin() || actor.OwnsTenant(*requested)):
		return *requested, nil
	case requested != nil:
		return 0, fmt.Errorf("tenant %d: %w", *requested, ErrForbidden)
	case actor.TenantID != nil && actor.OwnsTenant(*actor.TenantID):
		return *actor.TenantID, nil
	default:
		return 0, validationError("cliente_id is required")
	}
}

// Create creates an event when the tenant's event quota allows it
func (s *EventService) Create(ctx context.Context, actor *models.User, in EventInput) (*models.Event, error) {
	tenantID, err := managedTenant(actor, in.TenantID)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateStruct(&in); err != nil {
		return nil, validationError("%s", err)
	}
	if in.ValorInscricao < 0 {
		return nil, validationError("valor_inscricao must not be negative")
	}
	if in.StartsAt != nil && in.EndsAt != nil && in.EndsAt.Before(*in.StartsAt) {
		return nil, validationError("ends_at is before starts_at")
	}

	if err := s.quotas.Check(ctx, tenantID, QuotaEvent); err != nil {
		return nil, err
	}

	event := &models.Event{
		TenantID:       tenantID,
		Name:           validator.SanitizeString(in.Name),
		Description:    in.Description,
		StartsAt:       in.StartsAt,
		EndsAt:         in.EndsAt,
		ValorInscricao: in.ValorInscricao,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, translate(err, "create event")
	}
	return event, nil
}

// List returns the events of the actor's tenant
func (s *EventService) List(ctx context.Context, actor *models.User, tenantID *int64) ([]models.Event, error) {
	id, err := managedTenant(actor, tenantID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// SetSubmissionWindow opens or closes submissions for an event
func (s *EventService) SetSubmissionWindow(ctx context.Context, actor *models.User, eventID int64, open bool) (*models.Event, error) {
	event, err := s.Managed(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.events.SetSubmissionsOpen(ctx, event.ID, open); err != nil {
		return nil, translate(err, "event")
	}
	event.SubmissionsOpen = open
	return event, nil
}

// FormInput describes a new form
type FormInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	EventID     *int64 `json:"evento_id"`
	TenantID    *int64 `json:"cliente_id"`
}

// CreateForm creates a form when the tenant's form quota allows it
func (s *EventService) CreateForm(ctx context.Context, actor *models.User, in FormInput) (*models.Form, error) {
	tenantID, err := managedTenant(actor, in.TenantID)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateStruct(&in); err != nil {
		return nil, validationError("%s", err)
	}
	if in.EventID != nil {
		event, err := s.Managed(ctx, actor, *in.EventID)
		if err != nil {
			return nil, err
		}
		if event.TenantID != tenantID {
			return nil, validationError("event %d does not belong to tenant %d", event.ID, tenantID)
		}
	}

	if err := s.quotas.Check(ctx, tenantID, QuotaForm); err != nil {
		return nil, err
	}

	form := &models.Form{
		TenantID:    tenantID,
		EventID:     in.EventID,
		Name:        validator.SanitizeString(in.Name),
		Description: in.Description,
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return nil, translate(err, "create form")
	}
	return form, nil
}

// ListForms returns the forms of the actor's tenant
func (s *EventService) ListForms(ctx context.Context, actor *models.User, tenantID *int64) ([]models.Form, error) {
	id, err := managedTenant(actor, tenantID)
	if err != nil {
		return nil, err
	}
	forms, err := s.forms.ListByTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if forms == nil {
		forms = []models.Form{}
	}
	return forms, nil
}

// CreateWorkshop adds a workshop to an event
func (s *EventService) CreateWorkshop(ctx context.Context, actor *models.User, eventID int64, name string) (*models.Workshop, error) {
	event, err := s.Managed(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateRequired("name", name); err != nil {
		return nil, validationError("%s", err)
	}
	w := &models.Workshop{EventID: event.ID, Name: validator.SanitizeString(name)}
	if err := s.checkins.CreateWorkshop(ctx, w); err != nil {
		return nil, translate(err, "create workshop")
	}
	return w, nil
}

// ListWorkshops returns the workshops of an event
func (s *EventService) ListWorkshops(ctx context.Context, eventID int64) ([]models.Workshop, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return nil, err
	}
	workshops, err := s.checkins.ListWorkshops(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if workshops == nil {
		workshops = []models.Workshop{}
	}
	return workshops, nil
}

// RecordCheckin registers a user's presence. With checkin_global off every
// check-in must name one of the event's workshops.
func (s *EventService) RecordCheckin(ctx context.Context, actor *models.User, eventID, userID int64, workshopID *int64) (*models.Checkin, error) {
	event, err := s.Managed(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.configs.Effective(ctx, event.TenantID, &event.ID)
	if err != nil {
		return nil, err
	}
	if workshopID == nil && !cfg.CheckinGlobal {
		return nil, validationError("workshop_id is required when global check-in is disabled")
	}
	if workshopID != nil {
		workshops, err := s.checkins.ListWorkshops(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		found := false
		for _, w := range workshops {
			if w.ID == *workshopID {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("workshop %d of event %d: %w", *workshopID, event.ID, ErrNotFound)
		}
	}

	c := &models.Checkin{UserID: userID, EventID: event.ID, WorkshopID: workshopID}
	if err := s.checkins.Create(ctx, c); err != nil {
		return nil, translate(err, "checkin")
	}
	return c, nil
}

// CertificateRulesInput are the eligibility rules of an event
type CertificateRulesInput struct {
	MinCheckins          int     `json:"min_checkins"`
	RequiredWorkshopIDs  []int64 `json:"required_workshop_ids"`
	MinAttendancePercent float64 `json:"min_attendance_percent"`
}

// SetCertificateRules creates or replaces the eligibility rules of an event
func (s *EventService) SetCertificateRules(ctx context.Context, actor *models.User, eventID int64, in CertificateRulesInput) (*models.CertificateConfig, error) {
	event, err := s.Managed(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if in.MinCheckins < 0 {
		return nil, validationError("min_checkins must not be negative")
	}
	if in.MinAttendancePercent < 0 || in.MinAttendancePercent > 100 {
		return nil, validationError("min_attendance_percent must be between 0 and 100")
	}

	workshops, err := s.checkins.ListWorkshops(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(workshops))
	for _, w := range workshops {
		known[w.ID] = true
	}
	for _, id := range in.RequiredWorkshopIDs {
		if !known[id] {
			return nil, validationError("workshop %d does not belong to event %d", id, event.ID)
		}
	}

	cfg := &models.CertificateConfig{
		EventID:              event.ID,
		MinCheckins:          in.MinCheckins,
		RequiredWorkshopIDs:  in.RequiredWorkshopIDs,
		MinAttendancePercent: in.MinAttendancePercent,
	}
	if err := s.rules.UpsertConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
