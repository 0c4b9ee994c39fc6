package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"evento/internal/distribution"
	"evento/internal/metrics"
	"evento/internal/models"
	"evento/internal/report"

	"github.com/google/uuid"
)

// DistributionService assigns reviewers to the submissions of an event
type DistributionService struct {
	events      EventLookup
	submissions SubmissionSource
	assignments AssignmentStore
	pool        ReviewerPool
	users       UserLookup
	configs     *ConfigService
	notifier    Notifier
	audit       Auditor
	now         func() time.Time
}

// NewDistributionService creates a new distribution service. notifier may be nil.
func NewDistributionService(
	events EventLookup,
	submissions SubmissionSource,
	assignments AssignmentStore,
	pool ReviewerPool,
	users UserLookup,
	configs *ConfigService,
	notifier Notifier,
	audit Auditor,
) *DistributionService {
	return &DistributionService{
		events:      events,
		submissions: submissions,
		assignments: assignments,
		pool:        pool,
		users:       users,
		configs:     configs,
		notifier:    notifier,
		audit:       audit,
		now:         time.Now,
	}
}

// Distribute runs one distribution pass over the event and returns its log.
// Existing assignments are kept; only missing reviewers are added.
func (s *DistributionService) Distribute(ctx context.Context, eventID int64, actorID *int64) (*models.DistributionLog, error) {
	started := s.now()

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	cfg, err := s.configs.Effective(ctx, event.TenantID, &event.ID)
	if err != nil {
		return nil, err
	}

	reviewers, err := s.pool.PoolForEvent(ctx, event.TenantID, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load reviewer pool: %w", err)
	}
	subs, err := s.submissions.ListDistributable(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	current, err := s.assignments.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	loads, err := s.assignments.ActiveLoads(ctx, reviewers)
	if err != nil {
		return nil, fmt.Errorf("load reviewer loads: %w", err)
	}

	in := distribution.Input{
		Reviewers: reviewers,
		Existing:  make(map[int64][]int64),
		Loads:     loads,
	}
	titles := make(map[int64]string, len(subs))
	for _, sub := range subs {
		in.Submissions = append(in.Submissions, distribution.Submission{ID: sub.ID, AuthorID: sub.AuthorID})
		titles[sub.ID] = sub.Title
	}
	for _, a := range current {
		in.Existing[a.SubmissionID] = append(in.Existing[a.SubmissionID], a.ReviewerID)
	}

	plan := distribution.Build(in, distribution.Settings{
		MaxPerReviewer: cfg.MaxTrabalhosPorRevisor,
		MinReviewers:   cfg.NumRevisoresMin,
		MaxReviewers:   cfg.NumRevisoresMax,
	})

	deadline := started.AddDate(0, 0, cfg.PrazoRevisaoDias)
	toCreate := make([]models.Assignment, 0, len(plan.Picks))
	for _, p := range plan.Picks {
		toCreate = append(toCreate, models.Assignment{
			SubmissionID: p.SubmissionID,
			ReviewerID:   p.ReviewerID,
			Deadline:     deadline,
		})
	}

	detail, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode distribution detail: %w", err)
	}

	finished := s.now()
	log := &models.DistributionLog{
		RunID:               uuid.NewString(),
		EventID:             event.ID,
		ActorID:             actorID,
		TotalSubmissions:    plan.TotalSubmissions,
		ConflictsDetected:   plan.Conflicts,
		FallbackAssignments: plan.Fallbacks,
		FailedAssignments:   plan.Failures,
		StartedAt:           started,
		FinishedAt:          finished,
		DurationMS:          finished.Sub(started).Milliseconds(),
		Detail:              detail,
	}

	created, err := s.assignments.SaveRun(ctx, toCreate, log)
	if err != nil {
		metrics.ObserveDistribution("error", finished.Sub(started), 0, 0, 0)
		return nil, fmt.Errorf("save distribution run: %w", err)
	}

	strict := len(created) - plan.Fallbacks
	if strict < 0 {
		strict = 0
	}
	metrics.ObserveDistribution("ok", finished.Sub(started), strict, plan.Fallbacks, plan.Failures)
	s.audit.Log(ctx, actorID, AuditDistributionRun, "event",
		"event=%d run=%s submissions=%d assignments=%d conflicts=%d fallbacks=%d failed=%d",
		event.ID, log.RunID, log.TotalSubmissions, log.TotalAssignments,
		log.ConflictsDetected, log.FallbackAssignments, log.FailedAssignments)
	slog.Info("Distribution run finished",
		"event_id", event.ID,
		"run_id", log.RunID,
		"assignments", log.TotalAssignments,
		"failed", log.FailedAssignments,
		"duration_ms", log.DurationMS,
	)

	s.notify(ctx, event, created, titles)
	return log, nil
}

// notify emails every reviewer that received work. Failures are only logged.
func (s *DistributionService) notify(ctx context.Context, event *models.Event, created []models.Assignment, titles map[int64]string) {
	if s.notifier == nil || len(created) == 0 {
		return
	}

	byReviewer := make(map[int64][]models.Assignment)
	var ids []int64
	for _, a := range created {
		if _, ok := byReviewer[a.ReviewerID]; !ok {
			ids = append(ids, a.ReviewerID)
		}
		byReviewer[a.ReviewerID] = append(byReviewer[a.ReviewerID], a)
	}

	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		slog.Warn("Failed to load reviewers for notification", "event_id", event.ID, "error", err)
		return
	}
	for _, u := range users {
		list := byReviewer[u.ID]
		names := make([]string, 0, len(list))
		for _, a := range list {
			names = append(names, titles[a.SubmissionID])
		}
		if err := s.notifier.SendReviewAssignment(u.Email, u.Name, event.Name, names, list[0].Deadline); err != nil {
			slog.Warn("Failed to send assignment email", "reviewer_id", u.ID, "event_id", event.ID, "error", err)
		}
	}
}

// Reassign replaces the reviewer of an incomplete assignment with the least
// loaded eligible reviewer of the pool.
func (s *DistributionService) Reassign(ctx context.Context, assignmentID int64, actorID *int64) (*models.Assignment, error) {
	old, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, translate(err, "assignment")
	}
	if old.Completed {
		return nil, fmt.Errorf("assignment %d is already completed: %w", old.ID, ErrConflict)
	}
	sub, err := s.submissions.GetByID(ctx, old.SubmissionID)
	if err != nil {
		return nil, translate(err, "submission")
	}
	event, err := s.events.GetByID(ctx, sub.EventID)
	if err != nil {
		return nil, translate(err, "event")
	}
	cfg, err := s.configs.Effective(ctx, event.TenantID, &event.ID)
	if err != nil {
		return nil, err
	}

	reviewers, err := s.pool.PoolForEvent(ctx, event.TenantID, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load reviewer pool: %w", err)
	}
	current, err := s.assignments.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	exclude := map[int64]bool{old.ReviewerID: true}
	for _, a := range current {
		if a.SubmissionID == sub.ID {
			exclude[a.ReviewerID] = true
		}
	}
	loads, err := s.assignments.ActiveLoads(ctx, reviewers)
	if err != nil {
		return nil, fmt.Errorf("load reviewer loads: %w", err)
	}

	next, ok := distribution.PickReplacement(reviewers, loads, sub.AuthorID, exclude, cfg.MaxTrabalhosPorRevisor)
	if !ok {
		return nil, fmt.Errorf("no eligible reviewer left for submission %d: %w", sub.ID, ErrConflict)
	}

	deadline := s.now().AddDate(0, 0, cfg.PrazoRevisaoDias)
	replaced, err := s.assignments.Replace(ctx, old, next, deadline)
	if err != nil {
		return nil, translate(err, "reassign")
	}

	s.audit.Log(ctx, actorID, AuditReviewerReplaced, "assignment",
		"submission=%d from=%d to=%d", sub.ID, old.ReviewerID, next)
	s.notify(ctx, event, []models.Assignment{*replaced}, map[int64]string{sub.ID: sub.Title})
	return replaced, nil
}

// AssignmentEvent returns the event an assignment belongs to
func (s *DistributionService) AssignmentEvent(ctx context.Context, assignmentID int64) (int64, error) {
	a, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return 0, translate(err, "assignment")
	}
	sub, err := s.submissions.GetByID(ctx, a.SubmissionID)
	if err != nil {
		return 0, translate(err, "submission")
	}
	return sub.EventID, nil
}

// Logs returns the distribution runs of an event, newest first
func (s *DistributionService) Logs(ctx context.Context, eventID int64) ([]models.DistributionLog, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, translate(err, "event")
	}
	logs, err := s.assignments.ListLogs(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.DistributionLog{}
	}
	return logs, nil
}

// ExportReport writes the assignments and runs of an event to an .xlsx file
// in dir and returns its path.
func (s *DistributionService) ExportReport(ctx context.Context, eventID int64, dir string) (string, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return "", translate(err, "event")
	}
	details, err := s.assignments.ListDetailsByEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	logs, err := s.assignments.ListLogs(ctx, eventID)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("distribution_event_%d_%s.xlsx", event.ID, s.now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := report.WriteDistribution(path, event, details, logs); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
