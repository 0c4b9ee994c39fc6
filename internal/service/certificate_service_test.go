package service

import (
	"context"
	"strings"
	"testing"

	"evento/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workshopCheckins(userID, eventID int64, workshopIDs ...int64) []models.Checkin {
	out := []models.Checkin{{UserID: userID, EventID: eventID}}
	for _, id := range workshopIDs {
		out = append(out, models.Checkin{UserID: userID, EventID: eventID, WorkshopID: ptr(id)})
	}
	return out
}

func TestEvaluateEligibility(t *testing.T) {
	workshops := []models.Workshop{
		{ID: 1, EventID: 9, Name: "Go basics"},
		{ID: 2, EventID: 9, Name: "Concurrency"},
		{ID: 3, EventID: 9, Name: "Testing"},
		{ID: 4, EventID: 9, Name: "Profiling"},
	}
	cfg := &models.CertificateConfig{
		EventID:              9,
		MinCheckins:          3,
		RequiredWorkshopIDs:  []int64{1, 2},
		MinAttendancePercent: 50,
	}

	t.Run("all criteria met", func(t *testing.T) {
		pending := EvaluateEligibility(cfg, workshops, workshopCheckins(5, 9, 1, 2))
		assert.NotNil(t, pending)
		assert.Empty(t, pending)
	})

	tests := []struct {
		name     string
		checkins []models.Checkin
		want     []string
	}{
		{
			name:     "too few check-ins",
			checkins: workshopCheckins(5, 9, 1, 2)[1:],
			want:     []string{"minimum check-ins: 3 required, 2 recorded"},
		},
		{
			name:     "mandatory workshop missed",
			checkins: workshopCheckins(5, 9, 1, 3),
			want:     []string{"mandatory workshop not attended: Concurrency (#2)"},
		},
		{
			name:     "extra global check-in",
			checkins: append(workshopCheckins(5, 9, 1, 2), models.Checkin{UserID: 5, EventID: 9}),
			want:     nil,
		},
		{
			name:     "nothing attended",
			checkins: nil,
			want: []string{
				"minimum check-ins: 3 required, 0 recorded",
				"mandatory workshop not attended: Go basics (#1)",
				"mandatory workshop not attended: Concurrency (#2)",
				"workshop attendance: 50.0% required, 0.0% reached (0 of 4)",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending := EvaluateEligibility(cfg, workshops, tt.checkins)
			if tt.want == nil {
				assert.Empty(t, pending)
				return
			}
			assert.Equal(t, tt.want, pending)
		})
	}
}

func TestEvaluateEligibilityAttendance(t *testing.T) {
	workshops := []models.Workshop{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	cfg := &models.CertificateConfig{MinAttendancePercent: 75}

	pending := EvaluateEligibility(cfg, workshops, workshopCheckins(5, 9, 1, 1, 2))
	require.Len(t, pending, 1)
	assert.Equal(t, "workshop attendance: 75.0% required, 50.0% reached (2 of 4)", pending[0])

	assert.Empty(t, EvaluateEligibility(cfg, workshops, workshopCheckins(5, 9, 1, 2, 3)))
	assert.Empty(t, EvaluateEligibility(cfg, nil, nil), "events without workshops skip the percentage")
}

func TestEvaluateEligibilityUnknownWorkshop(t *testing.T) {
	cfg := &models.CertificateConfig{RequiredWorkshopIDs: []int64{42}}
	assert.Equal(t, []string{"mandatory workshop not attended: #42"}, EvaluateEligibility(cfg, nil, nil))
}

// Removing any satisfied criterion yields a pending reason that names it.
func TestEvaluateEligibilityMonotonic(t *testing.T) {
	workshops := []models.Workshop{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	cfg := &models.CertificateConfig{MinCheckins: 3, RequiredWorkshopIDs: []int64{1, 2}, MinAttendancePercent: 100}
	full := workshopCheckins(5, 9, 1, 2)
	require.Empty(t, EvaluateEligibility(cfg, workshops, full))

	for i := range full {
		reduced := append(append([]models.Checkin(nil), full[:i]...), full[i+1:]...)
		pending := EvaluateEligibility(cfg, workshops, reduced)
		require.NotEmpty(t, pending, "dropping check-in %d", i)
		assert.True(t, strings.HasPrefix(pending[0], "minimum check-ins"))
		if w := full[i].WorkshopID; w != nil {
			assert.Contains(t, strings.Join(pending, "|"), "not attended")
			assert.Contains(t, strings.Join(pending, "|"), "workshop attendance")
		}
	}
}

type certificateEnv struct {
	*testEnv
	store    *fakeCertificates
	checkins *fakeCheckins
	regs     *fakeRegistrations
	svc      *CertificateService
}

func newCertificateEnv() *certificateEnv {
	env := newTestEnv(&models.Event{ID: 9, TenantID: 1, Name: "GopherCon"})
	ce := &certificateEnv{
		testEnv:  env,
		store:    &fakeCertificates{},
		checkins: &fakeCheckins{workshops: []models.Workshop{{ID: 1, EventID: 9, Name: "Go basics"}}},
		regs: &fakeRegistrations{regs: []models.Registration{
			{ID: 1, EventID: 9, UserID: 5, PaymentStatus: models.PaymentStatusFree},
		}},
	}
	ce.svc = NewCertificateService(ce.store, ce.checkins, env.events, ce.regs, env.configs, env.audit)
	return ce
}

func TestVerifyWithoutRules(t *testing.T) {
	ce := newCertificateEnv()

	ok, pending, err := ce.svc.Verify(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{}, pending)
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	ce := newCertificateEnv()
	ce.store.rules = &models.CertificateConfig{EventID: 9, MinCheckins: 1, RequiredWorkshopIDs: []int64{1}}

	_, err := ce.svc.Issue(ctx, nil, 5, 9, "")
	var eligibility *EligibilityError
	require.ErrorAs(t, err, &eligibility)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Len(t, eligibility.Pending, 2)

	ce.checkins.checkins = workshopCheckins(5, 9, 1)

	cert, err := ce.svc.Issue(ctx, ptr(int64(2)), 5, 9, "")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateTypeParticipant, cert.Tipo)
	assert.True(t, cert.Liberado)
	_, err = uuid.Parse(cert.VerificationCode)
	assert.NoError(t, err)
	assert.Contains(t, ce.audit.actions(), AuditCertificateIssued)

	_, err = ce.svc.Issue(ctx, nil, 5, 9, models.CertificateTypeParticipant)
	assert.ErrorIs(t, err, ErrCertificateAlreadyIssued)
	assert.Len(t, ce.store.certs, 1)

	found, err := ce.svc.Lookup(ctx, cert.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, found.ID)
}

func TestIssueRequiresConfirmedRegistration(t *testing.T) {
	ctx := context.Background()
	ce := newCertificateEnv()
	ce.regs.regs = append(ce.regs.regs,
		models.Registration{ID: 2, EventID: 9, UserID: 8, PaymentStatus: models.PaymentStatusPending})

	tests := []struct {
		name    string
		userID  int64
		pending string
	}{
		{"never registered", 77, "not registered for the event"},
		{"payment pending", 8, "registration payment is pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ce.svc.Issue(ctx, nil, tt.userID, 9, "")
			var eligibility *EligibilityError
			require.ErrorAs(t, err, &eligibility)
			assert.Equal(t, []string{tt.pending}, eligibility.Pending)
		})
	}
	assert.Empty(t, ce.store.certs)

	ce.regs.regs[1].PaymentStatus = models.PaymentStatusApproved
	cert, err := ce.svc.Issue(ctx, nil, 8, 9, "")
	require.NoError(t, err)
	assert.Equal(t, int64(8), cert.UserID)
}

func TestIssueIndividualNeedsFlag(t *testing.T) {
	ctx := context.Background()
	ce := newCertificateEnv()

	_, err := ce.svc.Issue(ctx, nil, 5, 9, models.CertificateTypeIndividual)
	assert.ErrorIs(t, err, ErrForbidden)

	ce.configStore.mutate(1, ptr(int64(9)), func(c *models.TenantConfig) { c.HabilitarCertificadoIndividual = true })
	cert, err := ce.svc.Issue(ctx, nil, 5, 9, models.CertificateTypeIndividual)
	require.NoError(t, err)
	assert.Equal(t, models.CertificateTypeIndividual, cert.Tipo)
}

func TestIssueRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	ce := newCertificateEnv()

	_, err := ce.svc.Issue(ctx, nil, 5, 9, "honorary")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ce.svc.Issue(ctx, nil, 5, 404, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ce.svc.Lookup(ctx, "not-a-code")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ce.svc.Lookup(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssueForEvent(t *testing.T) {
	ctx := context.Background()
	ce := newCertificateEnv()
	ce.store.rules = &models.CertificateConfig{EventID: 9, MinCheckins: 1}
	ce.checkins.checkins = append(workshopCheckins(5, 9), workshopCheckins(6, 9)...)

	ce.regs.regs = []models.Registration{
		{ID: 1, EventID: 9, UserID: 5, PaymentStatus: models.PaymentStatusFree},
		{ID: 2, EventID: 9, UserID: 6, PaymentStatus: models.PaymentStatusApproved},
		{ID: 3, EventID: 9, UserID: 7, PaymentStatus: models.PaymentStatusApproved},
		{ID: 4, EventID: 9, UserID: 8, PaymentStatus: models.PaymentStatusPending},
	}
	ce.store.certs = []models.Certificate{{ID: 50, UserID: 6, EventID: 9, Tipo: models.CertificateTypeParticipant, Liberado: true}}
	ce.store.nextID = 50

	res, err := ce.svc.IssueForEvent(ctx, nil, 9, "")
	require.NoError(t, err)
	assert.Equal(t, BulkIssueResult{Considered: 3, Issued: 1, AlreadyIssued: 1, Ineligible: 1}, *res)

	_, err = ce.svc.IssueForEvent(ctx, nil, 9, models.CertificateTypeIndividual)
	assert.ErrorIs(t, err, ErrForbidden)
}
