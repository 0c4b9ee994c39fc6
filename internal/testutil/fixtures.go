package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"evento/internal/models"
	"evento/internal/repository"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every fixture user
const TestPassword = "Password123!"

// Fixtures holds test data
type Fixtures struct {
	DB          *sql.DB
	Admin       *models.User
	Tenant      *models.Tenant
	Owner       *models.User
	Participant *models.User
	Event       *models.Event

	faker *gofakeit.Faker
}

// SetupFixtures creates an admin, one tenant with its owner, a participant
// and an open event of that tenant
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	f := &Fixtures{DB: db, faker: gofakeit.New(uint64(time.Now().UnixNano()))}
	f.Admin = f.CreateUser(t, models.UserTypeAdmin)
	f.Tenant, f.Owner = f.CreateTenant(t)
	f.Participant = f.CreateUser(t, models.UserTypeParticipant)
	f.Event = f.CreateEvent(t, f.Tenant.ID)
	return f
}

// CreateUser inserts a user of the given type
func (f *Fixtures) CreateUser(t *testing.T, tipo string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        f.faker.Email(),
		PasswordHash: hash(t),
		Name:         f.faker.Name(),
		Tipo:         tipo,
	}
	if err := repository.NewUserRepository(f.DB).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// CreateTenant inserts a tenant together with its client user
func (f *Fixtures) CreateTenant(t *testing.T) (*models.Tenant, *models.User) {
	t.Helper()

	tenant := &models.Tenant{Name: f.faker.Company()}
	owner := &models.User{
		Email:        f.faker.Email(),
		PasswordHash: hash(t),
		Name:         f.faker.Name(),
	}
	if err := repository.NewTenantRepository(f.DB).CreateWithOwner(context.Background(), tenant, owner); err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}
	return tenant, owner
}

// CreateEvent inserts a free event with open submissions
func (f *Fixtures) CreateEvent(t *testing.T, tenantID int64) *models.Event {
	t.Helper()

	event := &models.Event{
		TenantID:        tenantID,
		Name:            f.faker.Sentence(3),
		Description:     f.faker.Paragraph(1, 2, 8, " "),
		SubmissionsOpen: true,
	}
	if err := repository.NewEventRepository(f.DB).Create(context.Background(), event); err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	return event
}

// CreateRegistration registers user for a free event
func (f *Fixtures) CreateRegistration(t *testing.T, eventID int64, user *models.User) *models.Registration {
	t.Helper()

	reg := &models.Registration{
		EventID:       eventID,
		UserID:        user.ID,
		Name:          user.Name,
		Email:         user.Email,
		PaymentStatus: models.PaymentStatusFree,
	}
	if err := repository.NewRegistrationRepository(f.DB).Create(context.Background(), reg); err != nil {
		t.Fatalf("Failed to create registration: %v", err)
	}
	return reg
}

// CreateSubmission inserts a submission of author to event
func (f *Fixtures) CreateSubmission(t *testing.T, eventID, authorID int64) *models.Submission {
	t.Helper()

	sub := &models.Submission{
		EventID:  eventID,
		AuthorID: authorID,
		Title:    f.faker.Sentence(5),
		Abstract: f.faker.Paragraph(1, 3, 10, " "),
	}
	if err := repository.NewSubmissionRepository(f.DB).Create(context.Background(), sub); err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}
	return sub
}

// ApproveReviewer creates a reviewer user with an approved candidature in a
// process covering every event of the tenant
func (f *Fixtures) ApproveReviewer(t *testing.T, tenantID int64) *models.User {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewReviewerRepository(f.DB)

	process := &models.ReviewerProcess{TenantID: tenantID, Name: f.faker.Sentence(2), IsOpen: true}
	if err := repo.CreateProcess(ctx, process); err != nil {
		t.Fatalf("Failed to create reviewer process: %v", err)
	}

	reviewer := f.CreateUser(t, models.UserTypeParticipant)
	cand := &models.ReviewerCandidature{ProcessID: process.ID, UserID: reviewer.ID}
	if err := repo.CreateCandidature(ctx, cand); err != nil {
		t.Fatalf("Failed to create candidature: %v", err)
	}
	if err := repo.Decide(ctx, cand.ID, models.CandidatureStatusApproved); err != nil {
		t.Fatalf("Failed to approve candidature: %v", err)
	}
	return reviewer
}

func hash(t *testing.T) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	return string(h)
}
