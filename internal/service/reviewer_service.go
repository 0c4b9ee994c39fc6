package service

import (
	"context"
	"errors"
	"fmt"

	"evento/internal/models"
	"evento/internal/repository"
	"evento/pkg/validator"
)

// Recommendations a reviewer may give
const (
	RecommendAccept = "accept"
	RecommendRevise = "revise"
	RecommendReject = "reject"
)

// ReviewerStore is the reviewer process persistence
type ReviewerStore interface {
	CreateProcess(ctx context.Context, p *models.ReviewerProcess) error
	GetProcess(ctx context.Context, id int64) (*models.ReviewerProcess, error)
	ListProcesses(ctx context.Context, tenantID int64) ([]models.ReviewerProcess, error)
	CreateCandidature(ctx context.Context, c *models.ReviewerCandidature) error
	GetCandidature(ctx context.Context, id int64) (*models.ReviewerCandidature, error)
	ListCandidatures(ctx context.Context, processID int64) ([]models.ReviewerCandidature, error)
	Decide(ctx context.Context, id int64, status string) error
}

// SubmissionStore is the submission persistence
type SubmissionStore interface {
	Create(ctx context.Context, s *models.Submission) error
	GetByID(ctx context.Context, id int64) (*models.Submission, error)
	ListByEvent(ctx context.Context, eventID int64) ([]models.Submission, error)
	Transition(ctx context.Context, id int64, from, to string) error
}

// ReviewWork is the reviewer's side of the assignments
type ReviewWork interface {
	ListDetailsByReviewer(ctx context.Context, reviewerID int64) ([]models.AssignmentDetail, error)
	Complete(ctx context.Context, id, reviewerID int64, recommendation, comments string) error
}

// ProcessInput describes a new reviewer process
type ProcessInput struct {
	Name     string  `json:"name" validate:"required"`
	EventIDs []int64 `json:"event_ids"`
	TenantID *int64  `json:"cliente_id"`
}

// SubmissionInput describes a new work submission
type SubmissionInput struct {
	Title    string `json:"title" validate:"required"`
	Abstract string `json:"abstract"`
}

// ReviewerService runs reviewer recruitment, submissions and reviews
type ReviewerService struct {
	reviewers   ReviewerStore
	submissions SubmissionStore
	work        ReviewWork
	events      EventLookup
	configs     *ConfigService
	quotas      *QuotaService
}

// NewReviewerService creates a new reviewer service
func NewReviewerService(reviewers ReviewerStore, submissions SubmissionStore, work ReviewWork, events EventLookup, configs *ConfigService, quotas *QuotaService) *ReviewerService {
	return &ReviewerService{
		reviewers:   reviewers,
		submissions: submissions,
		work:        work,
		events:      events,
		configs:     configs,
		quotas:      quotas,
	}
}

// CreateProcess opens a call for reviewers. Listed events must belong to the tenant.
func (s *ReviewerService) CreateProcess(ctx context.Context, actor *models.User, in ProcessInput) (*models.ReviewerProcess, error) {
	tenantID, err := managedTenant(actor, in.TenantID)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateStruct(&in); err != nil {
		return nil, validationError("%s", err)
	}
	for _, id := range in.EventIDs {
		event, err := s.events.GetByID(ctx, id)
		if err != nil {
			return nil, translate(err, fmt.Sprintf("event %d", id))
		}
		if event.TenantID != tenantID {
			return nil, validationError("event %d does not belong to tenant %d", id, tenantID)
		}
	}

	p := &models.ReviewerProcess{
		TenantID: tenantID,
		Name:     validator.SanitizeString(in.Name),
		EventIDs: in.EventIDs,
		IsOpen:   true,
	}
	if err := s.reviewers.CreateProcess(ctx, p); err != nil {
		return nil, translate(err, "create reviewer process")
	}
	return p, nil
}

// ListProcesses returns the reviewer processes of a tenant
func (s *ReviewerService) ListProcesses(ctx context.Context, actor *models.User, tenantID *int64) ([]models.ReviewerProcess, error) {
	id, err := managedTenant(actor, tenantID)
	if err != nil {
		return nil, err
	}
	processes, err := s.reviewers.ListProcesses(ctx, id)
	if err != nil {
		return nil, err
	}
	if processes == nil {
		processes = []models.ReviewerProcess{}
	}
	return processes, nil
}

// Apply records the user's candidature to an open process
func (s *ReviewerService) Apply(ctx context.Context, user *models.User, processID int64) (*models.ReviewerCandidature, error) {
	p, err := s.reviewers.GetProcess(ctx, processID)
	if err != nil {
		return nil, translate(err, "reviewer process")
	}
	if !p.IsOpen {
		return nil, fmt.Errorf("reviewer process %d is closed: %w", p.ID, ErrConflict)
	}
	c := &models.ReviewerCandidature{ProcessID: p.ID, UserID: user.ID}
	if err := s.reviewers.CreateCandidature(ctx, c); err != nil {
		return nil, translate(err, "candidature")
	}
	return c, nil
}

// ListCandidatures returns the candidatures of a process the actor manages
func (s *ReviewerService) ListCandidatures(ctx context.Context, actor *models.User, processID int64) ([]models.ReviewerCandidature, error) {
	p, err := s.managedProcess(ctx, actor, processID)
	if err != nil {
		return nil, err
	}
	list, err := s.reviewers.ListCandidatures(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.ReviewerCandidature{}
	}
	return list, nil
}

// Decide approves or rejects a pending candidature. Approval counts against
// the tenant's reviewer quota.
func (s *ReviewerService) Decide(ctx context.Context, actor *models.User, candidatureID int64, approve bool) (*models.ReviewerCandidature, error) {
	c, err := s.reviewers.GetCandidature(ctx, candidatureID)
	if err != nil {
		return nil, translate(err, "candidature")
	}
	p, err := s.managedProcess(ctx, actor, c.ProcessID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CandidatureStatusPending {
		return nil, fmt.Errorf("candidature %d is %s: %w", c.ID, c.Status, ErrConflict)
	}

	status := models.CandidatureStatusRejected
	if approve {
		if err := s.quotas.Check(ctx, p.TenantID, QuotaReviewer); err != nil {
			return nil, err
		}
		status = models.CandidatureStatusApproved
	}
	if err := s.reviewers.Decide(ctx, c.ID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("candidature %d was decided concurrently: %w", c.ID, ErrConflict)
		}
		return nil, err
	}
	c.Status = status
	return c, nil
}

func (s *ReviewerService) managedProcess(ctx context.Context, actor *models.User, processID int64) (*models.ReviewerProcess, error) {
	p, err := s.reviewers.GetProcess(ctx, processID)
	if err != nil {
		return nil, translate(err, "reviewer process")
	}
	if !actor.IsAdmin() && !actor.OwnsTenant(p.TenantID) {
		return nil, fmt.Errorf("reviewer process %d: %w", p.ID, ErrForbidden)
	}
	return p, nil
}

// Submit stores the author's work for an event. The event's submission window
// must be open and work submission enabled in its configuration.
func (s *ReviewerService) Submit(ctx context.Context, author *models.User, eventID int64, in SubmissionInput) (*models.Submission, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	if err := validator.ValidateStruct(&in); err != nil {
		return nil, validationError("%s", err)
	}
	cfg, err := s.configs.Effective(ctx, event.TenantID, &event.ID)
	if err != nil {
		return nil, err
	}
	if !cfg.HabilitarSubmissaoTrabalhos {
		return nil, fmt.Errorf("work submission is disabled for event %d: %w", event.ID, ErrForbidden)
	}
	if !event.SubmissionsOpen {
		return nil, fmt.Errorf("submissions for event %d are closed: %w", event.ID, ErrConflict)
	}

	sub := &models.Submission{
		EventID:  event.ID,
		AuthorID: author.ID,
		Title:    validator.SanitizeString(in.Title),
		Abstract: in.Abstract,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, translate(err, "submission")
	}
	return sub, nil
}

// ListSubmissions returns the submissions of an event the actor manages
func (s *ReviewerService) ListSubmissions(ctx context.Context, actor *models.User, eventID int64) ([]models.Submission, error) {
	if _, err := s.managedEvent(ctx, actor, eventID); err != nil {
		return nil, err
	}
	list, err := s.submissions.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Submission{}
	}
	return list, nil
}

// DecideSubmission accepts or rejects a submission that is under review
func (s *ReviewerService) DecideSubmission(ctx context.Context, actor *models.User, submissionID int64, accept bool) (*models.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, translate(err, "submission")
	}
	if _, err := s.managedEvent(ctx, actor, sub.EventID); err != nil {
		return nil, err
	}

	to := models.SubmissionStatusRejected
	if accept {
		to = models.SubmissionStatusAccepted
	}
	if err := s.submissions.Transition(ctx, sub.ID, models.SubmissionStatusUnderReview, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("submission %d is %s, not under review: %w", sub.ID, sub.Status, ErrConflict)
		}
		return nil, err
	}
	sub.Status = to
	return sub, nil
}

func (s *ReviewerService) managedEvent(ctx context.Context, actor *models.User, eventID int64) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	if !actor.IsAdmin() && !actor.OwnsTenant(event.TenantID) {
		return nil, fmt.Errorf("event %d: %w", event.ID, ErrForbidden)
	}
	return event, nil
}

// MyAssignments lists the reviewer's assignments. Author ids are hidden for
// events reviewed double blind.
func (s *ReviewerService) MyAssignments(ctx context.Context, reviewer *models.User) ([]models.AssignmentDetail, error) {
	list, err := s.work.ListDetailsByReviewer(ctx, reviewer.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return []models.AssignmentDetail{}, nil
	}

	blind := make(map[int64]bool)
	for i := range list {
		eventID := list[i].EventID
		hide, seen := blind[eventID]
		if !seen {
			hide, err = s.doubleBlind(ctx, eventID)
			if err != nil {
				return nil, err
			}
			blind[eventID] = hide
		}
		if hide {
			list[i].AuthorID = 0
		}
	}
	return list, nil
}

func (s *ReviewerService) doubleBlind(ctx context.Context, eventID int64) (bool, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return false, translate(err, "event")
	}
	cfg, err := s.configs.Effective(ctx, event.TenantID, &event.ID)
	if err != nil {
		return false, err
	}
	return cfg.ModeloRevisao == models.ReviewModelDoubleBlind, nil
}

// CompleteAssignment records the reviewer's verdict on one of their open assignments
func (s *ReviewerService) CompleteAssignment(ctx context.Context, reviewer *models.User, assignmentID int64, recommendation, comments string) error {
	switch recommendation {
	case RecommendAccept, RecommendRevise, RecommendReject:
	default:
		return validationError("recommendation must be one of %s, %s, %s", RecommendAccept, RecommendRevise, RecommendReject)
	}
	if err := s.work.Complete(ctx, assignmentID, reviewer.ID, recommendation, comments); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("open assignment %d for reviewer %d: %w", assignmentID, reviewer.ID, ErrNotFound)
		}
		return err
	}
	return nil
}
