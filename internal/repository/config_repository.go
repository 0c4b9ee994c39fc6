package repository

import (
	"context"
	"database/sql"
	"fmt"

	"evento/internal/models"
)

// ConfigDefaults are written into a tenant-scope row the first time it is created
type ConfigDefaults struct {
	LimiteEventos          int
	LimiteInscritos        int
	LimiteFormularios      int
	LimiteRevisores        int
	MaxTrabalhosPorRevisor int
	NumRevisoresMin        int
	NumRevisoresMax        int
	PrazoRevisaoDias       int
}

// Column whitelists. Only these names are ever interpolated into SQL.
var (
	BoolConfigColumns = map[string]bool{
		"checkin_global":                   true,
		"habilitar_feedback":               true,
		"habilitar_certificado_individual": true,
		"habilitar_qrcode_credenciamento":  true,
		"habilitar_submissao_trabalhos":    true,
		"mostrar_taxa":                     true,
		"obrigatorio_nome":                 true,
		"obrigatorio_cpf":                  true,
		"obrigatorio_email":                true,
		"obrigatorio_telefone":             true,
		"obrigatorio_instituicao":          true,
	}
	IntConfigColumns = map[string]bool{
		"limite_eventos":            true,
		"limite_inscritos":          true,
		"limite_formularios":        true,
		"limite_revisores":          true,
		"max_trabalhos_por_revisor": true,
		"num_revisores_min":         true,
		"num_revisores_max":         true,
		"prazo_revisao_dias":        true,
	}
	StringConfigColumns = map[string]bool{
		"modelo_revisao": true,
	}
)

// copied from the tenant row when an event row is created
const configValueColumns = `limite_eventos, limite_inscritos, limite_formularios, limite_revisores,
	modelo_revisao, max_trabalhos_por_revisor, num_revisores_min, num_revisores_max, prazo_revisao_dias,
	checkin_global, habilitar_feedback, habilitar_certificado_individual, habilitar_qrcode_credenciamento,
	habilitar_submissao_trabalhos, mostrar_taxa,
	obrigatorio_nome, obrigatorio_cpf, obrigatorio_email, obrigatorio_telefone, obrigatorio_instituicao`

const scopeFilter = `tenant_id = $1 AND event_id IS NOT DISTINCT FROM $2`

// ConfigRepository stores tenant and event configuration rows
type ConfigRepository struct {
	db       *sql.DB
	defaults ConfigDefaults
}

// NewConfigRepository creates a new configuration repository
func NewConfigRepository(db *sql.DB, defaults ConfigDefaults) *ConfigRepository {
	return &ConfigRepository{db: db, defaults: defaults}
}

// EnsureConfig returns the configuration row of the scope (tenantID, eventID),
// creating it when missing. A tenant row is created from the defaults; an
// event row starts as a copy of the tenant row. Concurrent callers converge on
// the same row.
func (r *ConfigRepository) EnsureConfig(ctx context.Context, tenantID int64, eventID *int64) (*models.TenantConfig, error) {
	d := r.defaults
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_configs (tenant_id, event_id, limite_eventos, limite_inscritos, limite_formularios,
			limite_revisores, max_trabalhos_por_revisor, num_revisores_min, num_revisores_max, prazo_revisao_dias)
		VALUES ($1, NULL, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`,
		tenantID, d.LimiteEventos, d.LimiteInscritos, d.LimiteFormularios, d.LimiteRevisores,
		d.MaxTrabalhosPorRevisor, d.NumRevisoresMin, d.NumRevisoresMax, d.PrazoRevisaoDias,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure tenant config: %w", mapError(err))
	}

	if eventID != nil {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO tenant_configs (tenant_id, event_id, `+configValueColumns+`)
			SELECT tenant_id, $2, `+configValueColumns+`
			FROM tenant_configs
			WHERE tenant_id = $1 AND event_id IS NULL
			ON CONFLICT DO NOTHING`,
			tenantID, *eventID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to ensure event config: %w", mapError(err))
		}
	}

	return r.Get(ctx, tenantID, eventID)
}

// Get returns the configuration row of a scope without creating it
func (r *ConfigRepository) Get(ctx context.Context, tenantID int64, eventID *int64) (*models.TenantConfig, error) {
	c := &models.TenantConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, event_id, `+configValueColumns+`, created_at, updated_at
		FROM tenant_configs
		WHERE `+scopeFilter, tenantID, eventID,
	).Scan(
		&c.ID, &c.TenantID, &c.EventID,
		&c.LimiteEventos, &c.LimiteInscritos, &c.LimiteFormularios, &c.LimiteRevisores,
		&c.ModeloRevisao, &c.MaxTrabalhosPorRevisor, &c.NumRevisoresMin, &c.NumRevisoresMax, &c.PrazoRevisaoDias,
		&c.CheckinGlobal, &c.HabilitarFeedback, &c.HabilitarCertificadoIndividual, &c.HabilitarQRCodeCredenciamento,
		&c.HabilitarSubmissaoTrabalhos, &c.MostrarTaxa,
		&c.ObrigatorioNome, &c.ObrigatorioCPF, &c.ObrigatorioEmail, &c.ObrigatorioTelefone, &c.ObrigatorioInstituicao,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", mapError(err))
	}
	return c, nil
}

// Toggle flips a boolean column of an existing scope row in a single
// statement and returns the stored value.
func (r *ConfigRepository) Toggle(ctx context.Context, tenantID int64, eventID *int64, column string) (bool, error) {
	if !BoolConfigColumns[column] {
		return false, fmt.Errorf("unknown boolean config column %q", column)
	}
	var value bool
	err := r.db.QueryRowContext(ctx,
		`UPDATE tenant_configs SET `+column+` = NOT `+column+`, updated_at = NOW()
		WHERE `+scopeFilter+` RETURNING `+column,
		tenantID, eventID,
	).Scan(&value)
	if err != nil {
		return false, fmt.Errorf("failed to toggle %s: %w", column, mapError(err))
	}
	return value, nil
}

// SetBool stores an explicit value in a boolean column
func (r *ConfigRepository) SetBool(ctx context.Context, tenantID int64, eventID *int64, column string, value bool) error {
	if !BoolConfigColumns[column] {
		return fmt.Errorf("unknown boolean config column %q", column)
	}
	return r.set(ctx, tenantID, eventID, column, value)
}

// SetInt stores a value in an integer column
func (r *ConfigRepository) SetInt(ctx context.Context, tenantID int64, eventID *int64, column string, value int) error {
	if !IntConfigColumns[column] {
		return fmt.Errorf("unknown integer config column %q", column)
	}
	return r.set(ctx, tenantID, eventID, column, value)
}

// SetString stores a value in a text column
func (r *ConfigRepository) SetString(ctx context.Context, tenantID int64, eventID *int64, column, value string) error {
	if !StringConfigColumns[column] {
		return fmt.Errorf("unknown text config column %q", column)
	}
	return r.set(ctx, tenantID, eventID, column, value)
}

func (r *ConfigRepository) set(ctx context.Context, tenantID int64, eventID *int64, column string, value any) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenant_configs SET `+column+` = $3, updated_at = NOW() WHERE `+scopeFilter,
		tenantID, eventID, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, mapError(err))
	}
	return requireAffected(res)
}
