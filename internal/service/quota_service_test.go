package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"evento/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQuotaSequentialCreates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.configStore.mutate(1, nil, func(c *models.TenantConfig) { c.LimiteEventos = 3 })

	events := NewEventService(env.events, nil, nil, nil, env.configs, env.quotas)

	created, rejected := 0, 0
	for i := 0; i < 5; i++ {
		_, err := events.Create(ctx, env.owner, EventInput{Name: fmt.Sprintf("Event %d", i)})
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 3, created)
	assert.Equal(t, 2, rejected)
	count, _ := env.events.CountByTenant(ctx, 1)
	assert.Equal(t, 3, count)
	assert.Contains(t, env.audit.actions(), AuditQuotaRejected)
}

func TestQuotaZeroLimitRejectsFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.configStore.mutate(1, nil, func(c *models.TenantConfig) { c.LimiteFormularios = 0 })

	err := env.quotas.Check(ctx, 1, QuotaForm)

	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QuotaForm, qe.Kind)
	assert.Equal(t, 0, qe.Used)
	assert.Equal(t, 0, qe.Limit)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, "form limit reached (0 of 0)", err.Error())
}

func TestQuotaCheckEachKind(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.configStore.mutate(1, nil, func(c *models.TenantConfig) {
		c.LimiteInscritos = 2
		c.LimiteFormularios = 2
		c.LimiteRevisores = 2
	})

	env.registrants.n = 1
	env.forms.n = 2
	env.reviewers.n = 3

	assert.NoError(t, env.quotas.Check(ctx, 1, QuotaRegistrant))
	assert.ErrorIs(t, env.quotas.Check(ctx, 1, QuotaForm), ErrQuotaExceeded)
	assert.ErrorIs(t, env.quotas.Check(ctx, 1, QuotaReviewer), ErrQuotaExceeded)
	assert.ErrorIs(t, env.quotas.Check(ctx, 1, QuotaKind("bogus")), ErrValidation)
}

func TestQuotaUsage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(&models.Event{ID: 5, TenantID: 1}, &models.Event{ID: 6, TenantID: 2})
	env.forms.n = 4

	usage, err := env.quotas.Usage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, usage, len(QuotaKinds))
	assert.Equal(t, Usage{Used: 1, Limit: 10}, usage[QuotaEvent])
	assert.Equal(t, Usage{Used: 4, Limit: 10}, usage[QuotaForm])
	assert.Equal(t, Usage{Used: 0, Limit: 100}, usage[QuotaRegistrant])
}
