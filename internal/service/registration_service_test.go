package service

import (
	"context"
	"errors"
	"testing"

	"evento/internal/captcha"
	"evento/internal/models"
	"evento/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registrationEnv struct {
	*testEnv
	regs     *fakeRegistrations
	provider *fakeProvider
	captcha  *fakeCaptcha
	svc      *RegistrationService
	user     *models.User
}

func newRegistrationEnv() *registrationEnv {
	env := newTestEnv(
		&models.Event{ID: 9, TenantID: 1, Name: "Free meetup"},
		&models.Event{ID: 10, TenantID: 1, Name: "Paid workshop", ValorInscricao: 5000},
	)
	re := &registrationEnv{
		testEnv:  env,
		regs:     &fakeRegistrations{},
		provider: &fakeProvider{payments: map[string]*payment.Payment{}},
		captcha:  &fakeCaptcha{},
		user:     &models.User{ID: 5, Email: "ana@example.com", Tipo: models.UserTypeParticipant, IsActive: true},
	}
	payments := NewPaymentService(re.provider, nil, nil, nil, re.regs, env.events, env.audit,
		PaymentOptions{PlatformToken: "platform-token"})
	re.svc = NewRegistrationService(env.events, env.tenants, re.regs, env.configs, env.quotas, re.captcha, payments)
	return re
}

func TestRegisterFreeEvent(t *testing.T) {
	re := newRegistrationEnv()

	res, err := re.svc.Register(context.Background(), re.user, 9, RegistrationInput{Name: "  Ana  "}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFree, res.Registration.PaymentStatus)
	assert.Equal(t, "Ana", res.Registration.Name)
	assert.Equal(t, "ana@example.com", res.Registration.Email, "falls back to the account email")
	assert.Empty(t, res.InitPoint)
	assert.Nil(t, res.Registration.ExternalReference)

	_, err = re.svc.Register(context.Background(), re.user, 9, RegistrationInput{}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterPaidEvent(t *testing.T) {
	re := newRegistrationEnv()

	res, err := re.svc.Register(context.Background(), re.user, 10, RegistrationInput{}, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Registration.PaymentStatus)
	require.NotNil(t, res.Registration.ExternalReference)
	assert.Equal(t, "https://pay.example/"+*res.Registration.ExternalReference, res.InitPoint)
	require.Len(t, re.provider.preferences, 1)
	assert.Equal(t, int64(5000), re.provider.preferences[0].AmountCents)
}

func TestRegisterPaidEventTwiceSkipsCheckout(t *testing.T) {
	re := newRegistrationEnv()

	_, err := re.svc.Register(context.Background(), re.user, 10, RegistrationInput{}, "")
	require.NoError(t, err)

	_, err = re.svc.Register(context.Background(), re.user, 10, RegistrationInput{}, "")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, re.provider.preferences, 1, "no preference for a duplicate registration")
	assert.Len(t, re.regs.regs, 1)
}

func TestRegisterInactiveTenant(t *testing.T) {
	re := newRegistrationEnv()
	re.tenants[1].IsActive = false

	_, err := re.svc.Register(context.Background(), re.user, 9, RegistrationInput{}, "")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, re.regs.regs)
}

func TestRegisterPaidEventGatewayDown(t *testing.T) {
	re := newRegistrationEnv()
	re.provider.err = payment.ErrUnavailable

	_, err := re.svc.Register(context.Background(), re.user, 10, RegistrationInput{}, "")
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Empty(t, re.regs.regs)
}

func TestRegisterRequiredFields(t *testing.T) {
	re := newRegistrationEnv()
	re.configStore.mutate(1, ptr(int64(9)), func(c *models.TenantConfig) {
		c.ObrigatorioNome = true
		c.ObrigatorioCPF = true
		c.ObrigatorioTelefone = true
	})

	_, err := re.svc.Register(context.Background(), re.user, 9, RegistrationInput{Name: "Ana"}, "")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "missing required fields: cpf, telefone")

	_, err = re.svc.Register(context.Background(), re.user, 9, RegistrationInput{
		Name: "Ana", CPF: "111.111.111-11", Phone: "555",
	}, "")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "cpf")

	res, err := re.svc.Register(context.Background(), re.user, 9, RegistrationInput{
		Name: "Ana", CPF: "529.982.247-25", Phone: "555",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "52998224725", res.Registration.CPF)
}

func TestRegisterCaptcha(t *testing.T) {
	re := newRegistrationEnv()

	re.captcha.err = captcha.ErrRejected
	_, err := re.svc.Register(context.Background(), re.user, 9, RegistrationInput{}, "")
	assert.ErrorIs(t, err, ErrValidation)

	re.captcha.err = errors.New("dial tcp: timeout")
	_, err = re.svc.Register(context.Background(), re.user, 9, RegistrationInput{}, "")
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Empty(t, re.regs.regs)
}

func TestRegisterQuota(t *testing.T) {
	re := newRegistrationEnv()
	re.configStore.mutate(1, nil, func(c *models.TenantConfig) { c.LimiteInscritos = 1 })
	re.registrants.n = 1

	_, err := re.svc.Register(context.Background(), re.user, 9, RegistrationInput{}, "")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = re.svc.Register(context.Background(), re.user, 404, RegistrationInput{}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
