package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evento/internal/models"
	"evento/internal/payment"
	"evento/internal/repository"
)

type scopeKey struct {
	tenant int64
	event  int64
}

func keyOf(tenantID int64, eventID *int64) scopeKey {
	k := scopeKey{tenant: tenantID}
	if eventID != nil {
		k.event = *eventID
	}
	return k
}

// fakeConfigStore keeps configuration rows in memory with the same lazy
// creation rules as the SQL repository
type fakeConfigStore struct {
	mu       sync.Mutex
	rows     map[scopeKey]*models.TenantConfig
	defaults models.TenantConfig
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{
		rows: make(map[scopeKey]*models.TenantConfig),
		defaults: models.TenantConfig{
			LimiteEventos:          10,
			LimiteInscritos:        100,
			LimiteFormularios:      10,
			LimiteRevisores:        10,
			ModeloRevisao:          models.ReviewModelSingleBlind,
			MaxTrabalhosPorRevisor: 5,
			NumRevisoresMin:        1,
			NumRevisoresMax:        2,
			PrazoRevisaoDias:       14,
			CheckinGlobal:          true,
		},
	}
}

func (f *fakeConfigStore) EnsureConfig(_ context.Context, tenantID int64, eventID *int64) (*models.TenantConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk := keyOf(tenantID, nil)
	if _, ok := f.rows[tk]; !ok {
		row := f.defaults
		row.TenantID = tenantID
		f.rows[tk] = &row
	}
	k := keyOf(tenantID, eventID)
	if _, ok := f.rows[k]; !ok {
		row := *f.rows[tk]
		row.EventID = eventID
		f.rows[k] = &row
	}
	out := *f.rows[k]
	return &out, nil
}

func (f *fakeConfigStore) field(tenantID int64, eventID *int64, column string) (any, error) {
	row, ok := f.rows[keyOf(tenantID, eventID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	switch column {
	case "checkin_global":
		return &row.CheckinGlobal, nil
	case "habilitar_feedback":
		return &row.HabilitarFeedback, nil
	case "habilitar_certificado_individual":
		return &row.HabilitarCertificadoIndividual, nil
	case "habilitar_qrcode_credenciamento":
		return &row.HabilitarQRCodeCredenciamento, nil
	case "habilitar_submissao_trabalhos":
		return &row.HabilitarSubmissaoTrabalhos, nil
	case "mostrar_taxa":
		return &row.MostrarTaxa, nil
	case "obrigatorio_nome":
		return &row.ObrigatorioNome, nil
	case "obrigatorio_cpf":
		return &row.ObrigatorioCPF, nil
	case "obrigatorio_email":
		return &row.ObrigatorioEmail, nil
	case "obrigatorio_telefone":
		return &row.ObrigatorioTelefone, nil
	case "obrigatorio_instituicao":
		return &row.ObrigatorioInstituicao, nil
	case "limite_eventos":
		return &row.LimiteEventos, nil
	case "limite_inscritos":
		return &row.LimiteInscritos, nil
	case "limite_formularios":
		return &row.LimiteFormularios, nil
	case "limite_revisores":
		return &row.LimiteRevisores, nil
	case "max_trabalhos_por_revisor":
		return &row.MaxTrabalhosPorRevisor, nil
	case "num_revisores_min":
		return &row.NumRevisoresMin, nil
	case "num_revisores_max":
		return &row.NumRevisoresMax, nil
	case "prazo_revisao_dias":
		return &row.PrazoRevisaoDias, nil
	case "modelo_revisao":
		return &row.ModeloRevisao, nil
	}
	return nil, fmt.Errorf("unknown column %q", column)
}

func (f *fakeConfigStore) Toggle(_ context.Context, tenantID int64, eventID *int64, column string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.field(tenantID, eventID, column)
	if err != nil {
		return false, err
	}
	b := p.(*bool)
	*b = !*b
	return *b, nil
}

func (f *fakeConfigStore) SetBool(_ context.Context, tenantID int64, eventID *int64, column string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.field(tenantID, eventID, column)
	if err != nil {
		return err
	}
	*p.(*bool) = value
	return nil
}

func (f *fakeConfigStore) SetInt(_ context.Context, tenantID int64, eventID *int64, column string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.field(tenantID, eventID, column)
	if err != nil {
		return err
	}
	*p.(*int) = value
	return nil
}

func (f *fakeConfigStore) SetString(_ context.Context, tenantID int64, eventID *int64, column, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.field(tenantID, eventID, column)
	if err != nil {
		return err
	}
	*p.(*string) = value
	return nil
}

// mutate edits a stored row directly
func (f *fakeConfigStore) mutate(tenantID int64, eventID *int64, fn func(*models.TenantConfig)) {
	_, _ = f.EnsureConfig(context.Background(), tenantID, eventID)
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.rows[keyOf(tenantID, eventID)])
}

type fakeTenants map[int64]*models.Tenant

func (f fakeTenants) GetByID(_ context.Context, id int64) (*models.Tenant, error) {
	t, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events map[int64]*models.Event
	nextID int64
}

func newFakeEvents(events ...*models.Event) *fakeEvents {
	f := &fakeEvents{events: make(map[int64]*models.Event), nextID: 100}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeEvents) GetByID(_ context.Context, id int64) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (f *fakeEvents) Create(_ context.Context, e *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	stored := *e
	f.events[e.ID] = &stored
	return nil
}

func (f *fakeEvents) ListByTenant(_ context.Context, tenantID int64) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Event
	for _, e := range f.events {
		if e.TenantID == tenantID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEvents) CountByTenant(ctx context.Context, tenantID int64) (int, error) {
	list, _ := f.ListByTenant(ctx, tenantID)
	return len(list), nil
}

func (f *fakeEvents) SetSubmissionsOpen(_ context.Context, id int64, open bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.SubmissionsOpen = open
	return nil
}

type auditEntry struct {
	action  string
	details string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (f *fakeAudit) Log(_ context.Context, _ *int64, action, _ string, details string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(args) > 0 {
		details = fmt.Sprintf(details, args...)
	}
	f.entries = append(f.entries, auditEntry{action: action, details: details})
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.action)
	}
	return out
}

// fakeCounter serves both Counter and ReviewerCounter
type fakeCounter struct{ n int }

func (f *fakeCounter) CountByTenant(context.Context, int64) (int, error)         { return f.n, nil }
func (f *fakeCounter) CountApprovedByTenant(context.Context, int64) (int, error) { return f.n, nil }

type fakeCertificates struct {
	rules  *models.CertificateConfig
	certs  []models.Certificate
	nextID int64
}

func (f *fakeCertificates) GetConfig(context.Context, int64) (*models.CertificateConfig, error) {
	if f.rules == nil {
		return nil, repository.ErrNotFound
	}
	return f.rules, nil
}

func (f *fakeCertificates) UpsertConfig(_ context.Context, c *models.CertificateConfig) error {
	f.rules = c
	return nil
}

func (f *fakeCertificates) FindReleased(_ context.Context, userID, eventID int64, tipo string) (*models.Certificate, error) {
	for i := range f.certs {
		c := f.certs[i]
		if c.UserID == userID && c.EventID == eventID && c.Tipo == tipo && c.Liberado {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCertificates) Create(_ context.Context, c *models.Certificate) error {
	f.nextID++
	c.ID = f.nextID
	c.Liberado = true
	c.IssuedAt = time.Now()
	f.certs = append(f.certs, *c)
	return nil
}

func (f *fakeCertificates) GetByCode(_ context.Context, code string) (*models.Certificate, error) {
	for i := range f.certs {
		if f.certs[i].VerificationCode == code {
			c := f.certs[i]
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeCheckins struct {
	workshops []models.Workshop
	checkins  []models.Checkin
}

func (f *fakeCheckins) ListWorkshops(_ context.Context, eventID int64) ([]models.Workshop, error) {
	var out []models.Workshop
	for _, w := range f.workshops {
		if w.EventID == eventID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeCheckins) ListByUserEvent(_ context.Context, userID, eventID int64) ([]models.Checkin, error) {
	var out []models.Checkin
	for _, c := range f.checkins {
		if c.UserID == userID && c.EventID == eventID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCheckins) CreateWorkshop(_ context.Context, w *models.Workshop) error {
	w.ID = int64(len(f.workshops) + 1)
	f.workshops = append(f.workshops, *w)
	return nil
}

func (f *fakeCheckins) Create(_ context.Context, c *models.Checkin) error {
	c.ID = int64(len(f.checkins) + 1)
	f.checkins = append(f.checkins, *c)
	return nil
}

type fakeRegistrations struct {
	mu   sync.Mutex
	regs []models.Registration
}

func (f *fakeRegistrations) Create(_ context.Context, reg *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.EventID == reg.EventID && r.UserID == reg.UserID {
			return fmt.Errorf("failed to create registration: %w", repository.ErrDuplicate)
		}
	}
	reg.ID = int64(len(f.regs) + 1)
	f.regs = append(f.regs, *reg)
	return nil
}

func (f *fakeRegistrations) GetByExternalReference(_ context.Context, ref string) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.ExternalReference != nil && *r.ExternalReference == ref {
			out := r
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRegistrations) GetByUserEvent(_ context.Context, userID, eventID int64) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.UserID == userID && r.EventID == eventID {
			out := r
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRegistrations) ListByEvent(_ context.Context, eventID int64) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, r := range f.regs {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistrations) UpdatePaymentStatus(_ context.Context, id int64, status, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.regs {
		if f.regs[i].ID == id {
			f.regs[i].PaymentStatus = status
			f.regs[i].PaymentID = &paymentID
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeSubmissions struct {
	subs []models.Submission
}

func (f *fakeSubmissions) Create(_ context.Context, s *models.Submission) error {
	for _, existing := range f.subs {
		if existing.EventID == s.EventID && existing.AuthorID == s.AuthorID {
			return repository.ErrDuplicate
		}
	}
	s.ID = int64(len(f.subs) + 1)
	s.Status = models.SubmissionStatusSubmitted
	f.subs = append(f.subs, *s)
	return nil
}

func (f *fakeSubmissions) GetByID(_ context.Context, id int64) (*models.Submission, error) {
	for _, s := range f.subs {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSubmissions) ListByEvent(_ context.Context, eventID int64) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range f.subs {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissions) ListDistributable(_ context.Context, eventID int64) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range f.subs {
		if s.EventID == eventID && (s.Status == models.SubmissionStatusSubmitted || s.Status == models.SubmissionStatusUnderReview) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissions) Transition(_ context.Context, id int64, from, to string) error {
	for i := range f.subs {
		if f.subs[i].ID == id && f.subs[i].Status == from {
			f.subs[i].Status = to
			return nil
		}
	}
	return repository.ErrNotFound
}

// fakeAssignments stores the assignments of a single event
type fakeAssignments struct {
	subs        *fakeSubmissions
	assignments []models.Assignment
	logs        []models.DistributionLog
	nextID      int64
}

func (f *fakeAssignments) GetByID(_ context.Context, id int64) (*models.Assignment, error) {
	for _, a := range f.assignments {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAssignments) ListByEvent(context.Context, int64) ([]models.Assignment, error) {
	return append([]models.Assignment(nil), f.assignments...), nil
}

func (f *fakeAssignments) ActiveLoads(_ context.Context, reviewerIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(reviewerIDs))
	for _, a := range f.assignments {
		if !a.Completed {
			out[a.ReviewerID]++
		}
	}
	return out, nil
}

func (f *fakeAssignments) exists(submissionID, reviewerID int64) bool {
	for _, a := range f.assignments {
		if a.SubmissionID == submissionID && a.ReviewerID == reviewerID {
			return true
		}
	}
	return false
}

func (f *fakeAssignments) SaveRun(_ context.Context, assignments []models.Assignment, log *models.DistributionLog) ([]models.Assignment, error) {
	var created []models.Assignment
	for _, a := range assignments {
		if f.exists(a.SubmissionID, a.ReviewerID) {
			continue
		}
		f.nextID++
		a.ID = f.nextID
		f.assignments = append(f.assignments, a)
		created = append(created, a)
		if f.subs != nil {
			_ = f.subs.Transition(context.Background(), a.SubmissionID,
				models.SubmissionStatusSubmitted, models.SubmissionStatusUnderReview)
		}
	}
	log.TotalAssignments = len(created)
	log.ID = int64(len(f.logs) + 1)
	f.logs = append([]models.DistributionLog{*log}, f.logs...)
	return created, nil
}

func (f *fakeAssignments) Replace(_ context.Context, old *models.Assignment, reviewerID int64, deadline time.Time) (*models.Assignment, error) {
	for i, a := range f.assignments {
		if a.ID != old.ID || a.Completed {
			continue
		}
		if f.exists(a.SubmissionID, reviewerID) {
			return nil, repository.ErrDuplicate
		}
		f.nextID++
		next := models.Assignment{
			ID:             f.nextID,
			SubmissionID:   a.SubmissionID,
			ReviewerID:     reviewerID,
			Deadline:       deadline,
			IsReevaluation: true,
		}
		f.assignments[i] = next
		return &next, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAssignments) ListLogs(context.Context, int64) ([]models.DistributionLog, error) {
	return f.logs, nil
}

func (f *fakeAssignments) ListDetailsByEvent(context.Context, int64) ([]models.AssignmentDetail, error) {
	return nil, nil
}

type fakePool []int64

func (f fakePool) PoolForEvent(context.Context, int64, int64) ([]int64, error) { return f, nil }

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f fakeUsers) ListByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

type sentAssignment struct {
	to     string
	titles []string
}

type fakeNotifier struct {
	sent []sentAssignment
	err  error
}

func (f *fakeNotifier) SendReviewAssignment(to, _, _ string, titles []string, _ time.Time) error {
	f.sent = append(f.sent, sentAssignment{to: to, titles: titles})
	return f.err
}

type fakeProvider struct {
	payments    map[string]*payment.Payment
	preferences []payment.Preference
	tokens      []string
	err         error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreatePreference(_ context.Context, token string, p payment.Preference) (*payment.Checkout, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tokens = append(f.tokens, token)
	f.preferences = append(f.preferences, p)
	return &payment.Checkout{ID: "pref-" + p.ExternalReference, InitPoint: "https://pay.example/" + p.ExternalReference}, nil
}

func (f *fakeProvider) GetPayment(_ context.Context, token, id string) (*payment.Payment, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return p, nil
}

type fakeDeduper struct {
	seen map[string]bool
}

func (f *fakeDeduper) Once(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDeduper) Forget(_ context.Context, key string) error {
	delete(f.seen, key)
	return nil
}

type fakeCaptcha struct{ err error }

func (f fakeCaptcha) Verify(context.Context, string, string) error { return f.err }

// testEnv wires the configuration and quota services over in-memory stores
// for tenant 1, owned by owner.
type testEnv struct {
	configStore *fakeConfigStore
	tenants     fakeTenants
	events      *fakeEvents
	audit       *fakeAudit
	configs     *ConfigService
	quotas      *QuotaService
	registrants *fakeCounter
	forms       *fakeCounter
	reviewers   *fakeCounter
	admin       *models.User
	owner       *models.User
	stranger    *models.User
}

func newTestEnv(events ...*models.Event) *testEnv {
	env := &testEnv{
		configStore: newFakeConfigStore(),
		events:      newFakeEvents(events...),
		audit:       &fakeAudit{},
		registrants: &fakeCounter{},
		forms:       &fakeCounter{},
		reviewers:   &fakeCounter{},
		admin:       &models.User{ID: 1, Tipo: models.UserTypeAdmin, IsActive: true},
		owner:       &models.User{ID: 2, Tipo: models.UserTypeClient, TenantID: ptr(int64(1)), IsActive: true},
		stranger:    &models.User{ID: 3, Tipo: models.UserTypeClient, TenantID: ptr(int64(2)), IsActive: true},
	}
	env.tenants = fakeTenants{
		1: {ID: 1, Name: "Tenant One", IsActive: true},
		2: {ID: 2, Name: "Tenant Two", IsActive: true},
	}
	env.configs = NewConfigService(env.configStore, env.tenants, env.events, env.audit)
	env.quotas = NewQuotaService(env.configs, env.events, env.registrants, env.forms, env.reviewers, env.audit)
	return env
}
