package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"evento/internal/models"
)

// SettingKind is the value type of a configuration setting
type SettingKind int

const (
	KindBool SettingKind = iota
	KindInt
	KindEnum
)

// Setting describes one public configuration name
type Setting struct {
	Name       string // public name used in /toggle_<name> and /set_<name>
	Column     string
	Kind       SettingKind
	AdminOnly  bool     // only platform admins may change it
	TenantOnly bool     // cannot be overridden per event
	Enum       []string // allowed values for KindEnum
}

var settings = []Setting{
	{Name: "checkin_global", Column: "checkin_global", Kind: KindBool},
	{Name: "feedback", Column: "habilitar_feedback", Kind: KindBool},
	{Name: "certificado_individual", Column: "habilitar_certificado_individual", Kind: KindBool},
	{Name: "qrcode_credenciamento", Column: "habilitar_qrcode_credenciamento", Kind: KindBool},
	{Name: "submissao_trabalhos", Column: "habilitar_submissao_trabalhos", Kind: KindBool},
	{Name: "mostrar_taxa", Column: "mostrar_taxa", Kind: KindBool},
	{Name: "obrigatorio_nome", Column: "obrigatorio_nome", Kind: KindBool},
	{Name: "obrigatorio_cpf", Column: "obrigatorio_cpf", Kind: KindBool},
	{Name: "obrigatorio_email", Column: "obrigatorio_email", Kind: KindBool},
	{Name: "obrigatorio_telefone", Column: "obrigatorio_telefone", Kind: KindBool},
	{Name: "obrigatorio_instituicao", Column: "obrigatorio_instituicao", Kind: KindBool},

	{Name: "limite_eventos", Column: "limite_eventos", Kind: KindInt, AdminOnly: true, TenantOnly: true},
	{Name: "limite_inscritos", Column: "limite_inscritos", Kind: KindInt, AdminOnly: true, TenantOnly: true},
	{Name: "limite_formularios", Column: "limite_formularios", Kind: KindInt, AdminOnly: true, TenantOnly: true},
	{Name: "limite_revisores", Column: "limite_revisores", Kind: KindInt, AdminOnly: true, TenantOnly: true},
	{Name: "max_trabalhos_por_revisor", Column: "max_trabalhos_por_revisor", Kind: KindInt},
	{Name: "num_revisores_min", Column: "num_revisores_min", Kind: KindInt},
	{Name: "num_revisores_max", Column: "num_revisores_max", Kind: KindInt},
	{Name: "prazo_revisao_dias", Column: "prazo_revisao_dias", Kind: KindInt},
	{Name: "modelo_revisao", Column: "modelo_revisao", Kind: KindEnum,
		Enum: []string{models.ReviewModelSingleBlind, models.ReviewModelDoubleBlind}},
}

var settingsByName = func() map[string]Setting {
	m := make(map[string]Setting, len(settings))
	for _, s := range settings {
		m[s.Name] = s
	}
	return m
}()

// ToggleNames lists the boolean settings, sorted
func ToggleNames() []string {
	var names []string
	for _, s := range settings {
		if s.Kind == KindBool {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

// SettingNames lists every setting, sorted
func SettingNames() []string {
	names := make([]string, 0, len(settings))
	for _, s := range settings {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Scope selects a configuration row. With EventID set the event row is used,
// otherwise TenantID or, when that is nil too, the actor's own tenant.
type Scope struct {
	TenantID *int64
	EventID  *int64
}

// ConfigStore is the persistence the configuration service needs
type ConfigStore interface {
	EnsureConfig(ctx context.Context, tenantID int64, eventID *int64) (*models.TenantConfig, error)
	Toggle(ctx context.Context, tenantID int64, eventID *int64, column string) (bool, error)
	SetBool(ctx context.Context, tenantID int64, eventID *int64, column string, value bool) error
	SetInt(ctx context.Context, tenantID int64, eventID *int64, column string, value int) error
	SetString(ctx context.Context, tenantID int64, eventID *int64, column, value string) error
}

// ConfigService reads and changes tenant and event configuration
type ConfigService struct {
	store      ConfigStore
	tenantRepo TenantLookup
	eventRepo  EventLookup
	audit      Auditor
}

// NewConfigService creates a new configuration service
func NewConfigService(store ConfigStore, tenantRepo TenantLookup, eventRepo EventLookup, audit Auditor) *ConfigService {
	return &ConfigService{store: store, tenantRepo: tenantRepo, eventRepo: eventRepo, audit: audit}
}

// Effective returns the configuration that applies to an event, or to the
// tenant when eventID is nil. Missing rows are created on the way.
func (s *ConfigService) Effective(ctx context.Context, tenantID int64, eventID *int64) (*models.TenantConfig, error) {
	cfg, err := s.store.EnsureConfig(ctx, tenantID, eventID)
	if err != nil {
		return nil, translate(err, "load configuration")
	}
	return cfg, nil
}

// Snapshot returns the configuration of a scope the actor may manage
func (s *ConfigService) Snapshot(ctx context.Context, actor *models.User, scope Scope) (*models.TenantConfig, error) {
	tenantID, eventID, err := s.resolve(ctx, actor, scope)
	if err != nil {
		return nil, err
	}
	return s.Effective(ctx, tenantID, eventID)
}

// Toggle flips the named boolean setting and returns the stored value
func (s *ConfigService) Toggle(ctx context.Context, actor *models.User, name string, scope Scope) (bool, error) {
	setting, ok := settingsByName[name]
	if !ok || setting.Kind != KindBool {
		return false, fmt.Errorf("toggle %q: %w", name, ErrNotFound)
	}
	tenantID, eventID, err := s.resolve(ctx, actor, scope)
	if err != nil {
		return false, err
	}
	if _, err := s.store.EnsureConfig(ctx, tenantID, eventID); err != nil {
		return false, translate(err, "load configuration")
	}

	value, err := s.store.Toggle(ctx, tenantID, eventID, setting.Column)
	if err != nil {
		return false, translate(err, "toggle "+name)
	}

	s.audit.Log(ctx, &actor.ID, AuditConfigToggled, "tenant_config",
		"tenant=%d event=%s %s=%t", tenantID, formatEvent(eventID), setting.Column, value)
	return value, nil
}

// Set validates and stores a value for the named setting. It returns the
// value as stored.
func (s *ConfigService) Set(ctx context.Context, actor *models.User, name string, scope Scope, raw json.RawMessage) (any, error) {
	setting, ok := settingsByName[name]
	if !ok {
		return nil, fmt.Errorf("setting %q: %w", name, ErrNotFound)
	}
	if setting.AdminOnly && !actor.IsAdmin() {
		return nil, fmt.Errorf("setting %q requires an administrator: %w", name, ErrForbidden)
	}
	if setting.TenantOnly && scope.EventID != nil {
		return nil, validationError("%s cannot be set per event", name)
	}

	tenantID, eventID, err := s.resolve(ctx, actor, scope)
	if err != nil {
		return nil, err
	}
	current, err := s.store.EnsureConfig(ctx, tenantID, eventID)
	if err != nil {
		return nil, translate(err, "load configuration")
	}

	var stored any
	switch setting.Kind {
	case KindBool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, validationError("%s must be a boolean", name)
		}
		err = s.store.SetBool(ctx, tenantID, eventID, setting.Column, v)
		stored = v
	case KindInt:
		v, verr := parseNonNegativeInt(raw)
		if verr != nil {
			return nil, validationError("%s %s", name, verr)
		}
		if verr := checkReviewerBounds(current, setting.Column, v); verr != nil {
			return nil, verr
		}
		err = s.store.SetInt(ctx, tenantID, eventID, setting.Column, v)
		stored = v
	case KindEnum:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || !contains(setting.Enum, v) {
			return nil, validationError("%s must be one of %v", name, setting.Enum)
		}
		err = s.store.SetString(ctx, tenantID, eventID, setting.Column, v)
		stored = v
	}
	if err != nil {
		return nil, translate(err, "set "+name)
	}

	s.audit.Log(ctx, &actor.ID, AuditConfigSet, "tenant_config",
		"tenant=%d event=%s %s=%v", tenantID, formatEvent(eventID), setting.Column, stored)
	return stored, nil
}

// resolve determines the row a request addresses and checks the actor may manage it
func (s *ConfigService) resolve(ctx context.Context, actor *models.User, scope Scope) (int64, *int64, error) {
	if scope.EventID != nil {
		event, err := s.eventRepo.GetByID(ctx, *scope.EventID)
		if err != nil {
			return 0, nil, translate(err, "event")
		}
		if scope.TenantID != nil && *scope.TenantID != event.TenantID {
			return 0, nil, validationError("event %d does not belong to tenant %d", event.ID, *scope.TenantID)
		}
		if !actor.IsAdmin() && !actor.OwnsTenant(event.TenantID) {
			return 0, nil, fmt.Errorf("event %d: %w", event.ID, ErrForbidden)
		}
		return event.TenantID, &event.ID, nil
	}

	var tenantID int64
	switch {
	case scope.TenantID != nil:
		tenantID = *scope.TenantID
	case actor.TenantID != nil:
		tenantID = *actor.TenantID
	default:
		return 0, nil, validationError("cliente_id is required")
	}
	if !actor.IsAdmin() && !actor.OwnsTenant(tenantID) {
		return 0, nil, fmt.Errorf("tenant %d: %w", tenantID, ErrForbidden)
	}
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return 0, nil, translate(err, "tenant")
	}
	return tenantID, nil, nil
}

func parseNonNegativeInt(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var str string
		if json.Unmarshal(raw, &str) != nil {
			return 0, fmt.Errorf("must be a number")
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		f = parsed
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("must be an integer")
	}
	if f < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return int(f), nil
}

func checkReviewerBounds(current *models.TenantConfig, column string, v int) error {
	switch column {
	case "num_revisores_min":
		if v > current.NumRevisoresMax {
			return validationError("num_revisores_min (%d) exceeds num_revisores_max (%d)", v, current.NumRevisoresMax)
		}
	case "num_revisores_max":
		if v < current.NumRevisoresMin {
			return validationError("num_revisores_max (%d) is below num_revisores_min (%d)", v, current.NumRevisoresMin)
		}
	}
	return nil
}

func formatEvent(eventID *int64) string {
	if eventID == nil {
		return "-"
	}
	return fmt.Sprint(*eventID)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
