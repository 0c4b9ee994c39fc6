package service

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"evento/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleParity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	before, err := env.configs.Snapshot(ctx, env.owner, Scope{})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		value, err := env.configs.Toggle(ctx, env.owner, "checkin_global", Scope{})
		require.NoError(t, err)

		stored, err := env.configs.Effective(ctx, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, stored.CheckinGlobal, value, "returned value must be the stored value")

		want := before.CheckinGlobal
		if i%2 == 1 {
			want = !want
		}
		assert.Equal(t, want, value, "after %d toggles", i)
	}
	assert.Equal(t, []string{AuditConfigToggled, AuditConfigToggled, AuditConfigToggled}, env.audit.actions())
}

func TestToggleEventScopeLeavesTenantAlone(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(&models.Event{ID: 7, TenantID: 1, Name: "Conf"})

	value, err := env.configs.Toggle(ctx, env.owner, "feedback", Scope{EventID: ptr(int64(7))})
	require.NoError(t, err)
	assert.True(t, value)

	tenant, err := env.configs.Effective(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, tenant.HabilitarFeedback)

	event, err := env.configs.Effective(ctx, 1, ptr(int64(7)))
	require.NoError(t, err)
	assert.True(t, event.HabilitarFeedback)
}

func TestEventScopeStartsFromTenantValues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(&models.Event{ID: 7, TenantID: 1, Name: "Conf"})

	_, err := env.configs.Set(ctx, env.owner, "prazo_revisao_dias", Scope{}, json.RawMessage(`21`))
	require.NoError(t, err)

	cfg, err := env.configs.Snapshot(ctx, env.owner, Scope{EventID: ptr(int64(7))})
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.PrazoRevisaoDias)
	require.NotNil(t, cfg.EventID)
	assert.Equal(t, int64(7), *cfg.EventID)
}

func TestToggleErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(&models.Event{ID: 7, TenantID: 1, Name: "Conf"})

	tests := []struct {
		name    string
		actor   *models.User
		setting string
		scope   Scope
		want    error
	}{
		{"unknown setting", env.owner, "nope", Scope{}, ErrNotFound},
		{"integer setting", env.owner, "limite_eventos", Scope{}, ErrNotFound},
		{"other tenant", env.stranger, "feedback", Scope{TenantID: ptr(int64(1))}, ErrForbidden},
		{"other tenant's event", env.stranger, "feedback", Scope{EventID: ptr(int64(7))}, ErrForbidden},
		{"unknown event", env.owner, "feedback", Scope{EventID: ptr(int64(99))}, ErrNotFound},
		{"event of another tenant", env.admin, "feedback", Scope{TenantID: ptr(int64(2)), EventID: ptr(int64(7))}, ErrValidation},
		{"admin without tenant", env.admin, "feedback", Scope{}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.configs.Toggle(ctx, tt.actor, tt.setting, tt.scope)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSetValues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(&models.Event{ID: 7, TenantID: 1, Name: "Conf"})

	tests := []struct {
		name    string
		actor   *models.User
		setting string
		scope   Scope
		raw     string
		want    any
		wantErr error
	}{
		{"bool", env.owner, "mostrar_taxa", Scope{}, `true`, true, nil},
		{"int", env.owner, "max_trabalhos_por_revisor", Scope{}, `8`, 8, nil},
		{"int as string", env.owner, "prazo_revisao_dias", Scope{}, `"10"`, 10, nil},
		{"enum", env.owner, "modelo_revisao", Scope{}, `"double_blind"`, models.ReviewModelDoubleBlind, nil},
		{"admin limit", env.admin, "limite_eventos", Scope{TenantID: ptr(int64(1))}, `3`, 3, nil},
		{"limit by owner", env.owner, "limite_eventos", Scope{}, `3`, nil, ErrForbidden},
		{"limit per event", env.admin, "limite_eventos", Scope{EventID: ptr(int64(7))}, `3`, nil, ErrValidation},
		{"negative", env.owner, "prazo_revisao_dias", Scope{}, `-1`, nil, ErrValidation},
		{"fraction", env.owner, "prazo_revisao_dias", Scope{}, `2.5`, nil, ErrValidation},
		{"not a number", env.owner, "prazo_revisao_dias", Scope{}, `"soon"`, nil, ErrValidation},
		{"bad enum", env.owner, "modelo_revisao", Scope{}, `"open"`, nil, ErrValidation},
		{"bool from string", env.owner, "mostrar_taxa", Scope{}, `"yes"`, nil, ErrValidation},
		{"min above max", env.owner, "num_revisores_min", Scope{}, `5`, nil, ErrValidation},
		{"max below min", env.owner, "num_revisores_max", Scope{}, `0`, nil, ErrValidation},
		{"unknown", env.owner, "nope", Scope{}, `1`, nil, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.configs.Set(ctx, tt.actor, tt.setting, tt.scope, json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetReviewerBoundsTogether(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	_, err := env.configs.Set(ctx, env.owner, "num_revisores_max", Scope{}, json.RawMessage(`4`))
	require.NoError(t, err)
	_, err = env.configs.Set(ctx, env.owner, "num_revisores_min", Scope{}, json.RawMessage(`4`))
	require.NoError(t, err)

	cfg, err := env.configs.Effective(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NumRevisoresMin)
	assert.Equal(t, 4, cfg.NumRevisoresMax)
}

func TestSettingNames(t *testing.T) {
	toggles := ToggleNames()
	assert.True(t, sort.StringsAreSorted(toggles))
	assert.Contains(t, toggles, "checkin_global")
	assert.Contains(t, toggles, "obrigatorio_cpf")
	assert.NotContains(t, toggles, "limite_eventos")

	all := SettingNames()
	assert.True(t, sort.StringsAreSorted(all))
	assert.Contains(t, all, "limite_eventos")
	assert.Contains(t, all, "modelo_revisao")
	assert.Greater(t, len(all), len(toggles))
}
