package service

import (
	"context"
	"testing"

	"evento/internal/models"
	"evento/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReviewers struct {
	processes    []models.ReviewerProcess
	candidatures []models.ReviewerCandidature
}

func (f *fakeReviewers) CreateProcess(_ context.Context, p *models.ReviewerProcess) error {
	p.ID = int64(len(f.processes) + 1)
	f.processes = append(f.processes, *p)
	return nil
}

func (f *fakeReviewers) GetProcess(_ context.Context, id int64) (*models.ReviewerProcess, error) {
	for _, p := range f.processes {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReviewers) ListProcesses(_ context.Context, tenantID int64) ([]models.ReviewerProcess, error) {
	var out []models.ReviewerProcess
	for _, p := range f.processes {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeReviewers) CreateCandidature(_ context.Context, c *models.ReviewerCandidature) error {
	for _, existing := range f.candidatures {
		if existing.ProcessID == c.ProcessID && existing.UserID == c.UserID {
			return repository.ErrDuplicate
		}
	}
	c.ID = int64(len(f.candidatures) + 1)
	c.Status = models.CandidatureStatusPending
	f.candidatures = append(f.candidatures, *c)
	return nil
}

func (f *fakeReviewers) GetCandidature(_ context.Context, id int64) (*models.ReviewerCandidature, error) {
	for _, c := range f.candidatures {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReviewers) ListCandidatures(_ context.Context, processID int64) ([]models.ReviewerCandidature, error) {
	var out []models.ReviewerCandidature
	for _, c := range f.candidatures {
		if c.ProcessID == processID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeReviewers) Decide(_ context.Context, id int64, status string) error {
	for i := range f.candidatures {
		if f.candidatures[i].ID == id && f.candidatures[i].Status == models.CandidatureStatusPending {
			f.candidatures[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeReviewWork struct {
	details   []models.AssignmentDetail
	completed map[int64]string
}

func (f *fakeReviewWork) ListDetailsByReviewer(_ context.Context, reviewerID int64) ([]models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, d := range f.details {
		if d.ReviewerID == reviewerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeReviewWork) Complete(_ context.Context, id, reviewerID int64, recommendation, _ string) error {
	for _, d := range f.details {
		if d.ID == id && d.ReviewerID == reviewerID && f.completed[id] == "" {
			f.completed[id] = recommendation
			return nil
		}
	}
	return repository.ErrNotFound
}

type reviewerEnv struct {
	*testEnv
	reviewers *fakeReviewers
	subs      *fakeSubmissions
	work      *fakeReviewWork
	svc       *ReviewerService
	author    *models.User
}

func newReviewerEnv() *reviewerEnv {
	env := newTestEnv(
		&models.Event{ID: 9, TenantID: 1, Name: "GopherCon", SubmissionsOpen: true},
		&models.Event{ID: 10, TenantID: 2, Name: "Other"},
	)
	re := &reviewerEnv{
		testEnv:   env,
		reviewers: &fakeReviewers{},
		subs:      &fakeSubmissions{},
		work:      &fakeReviewWork{completed: map[int64]string{}},
		author:    &models.User{ID: 20, Tipo: models.UserTypeParticipant, IsActive: true},
	}
	re.svc = NewReviewerService(re.reviewers, re.subs, re.work, env.events, env.configs, env.quotas)
	return re
}

func TestReviewerProcessLifecycle(t *testing.T) {
	ctx := context.Background()
	re := newReviewerEnv()

	_, err := re.svc.CreateProcess(ctx, re.owner, ProcessInput{Name: "PC", EventIDs: []int64{10}})
	assert.ErrorIs(t, err, ErrValidation, "event of another tenant")

	p, err := re.svc.CreateProcess(ctx, re.owner, ProcessInput{Name: "PC", EventIDs: []int64{9}})
	require.NoError(t, err)
	assert.True(t, p.IsOpen)

	c, err := re.svc.Apply(ctx, re.author, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidatureStatusPending, c.Status)

	_, err = re.svc.Apply(ctx, re.author, p.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = re.svc.Decide(ctx, re.stranger, c.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	decided, err := re.svc.Decide(ctx, re.owner, c.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.CandidatureStatusApproved, decided.Status)

	_, err = re.svc.Decide(ctx, re.owner, c.ID, false)
	assert.ErrorIs(t, err, ErrConflict, "only pending candidatures can be decided")

	list, err := re.svc.ListCandidatures(ctx, re.owner, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDecideApprovalRespectsQuota(t *testing.T) {
	ctx := context.Background()
	re := newReviewerEnv()
	re.configStore.mutate(1, nil, func(c *models.TenantConfig) { c.LimiteRevisores = 1 })
	re.reviewers.processes = []models.ReviewerProcess{{ID: 1, TenantID: 1, Name: "PC", IsOpen: true}}
	re.reviewers.candidatures = []models.ReviewerCandidature{{ID: 1, ProcessID: 1, UserID: 20, Status: models.CandidatureStatusPending}}
	re.reviewers.candidatures = append(re.reviewers.candidatures, models.ReviewerCandidature{ID: 2, ProcessID: 1, UserID: 21, Status: models.CandidatureStatusPending})
	re.testEnv.reviewers.n = 1

	_, err := re.svc.Decide(ctx, re.owner, 1, true)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	rejected, err := re.svc.Decide(ctx, re.owner, 2, false)
	require.NoError(t, err, "rejections do not count against the quota")
	assert.Equal(t, models.CandidatureStatusRejected, rejected.Status)
}

func TestSubmitNeedsOpenWindowAndFlag(t *testing.T) {
	ctx := context.Background()
	re := newReviewerEnv()
	in := SubmissionInput{Title: "Generics in practice"}

	_, err := re.svc.Submit(ctx, re.author, 9, in)
	assert.ErrorIs(t, err, ErrForbidden, "submission flag is off")

	re.configStore.mutate(1, ptr(int64(9)), func(c *models.TenantConfig) { c.HabilitarSubmissaoTrabalhos = true })
	sub, err := re.svc.Submit(ctx, re.author, 9, in)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusSubmitted, sub.Status)

	_, err = re.svc.Submit(ctx, re.author, 9, in)
	assert.ErrorIs(t, err, ErrConflict, "one submission per event")

	_, err = re.svc.Submit(ctx, re.author, 9, SubmissionInput{})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, re.events.SetSubmissionsOpen(ctx, 9, false))
	_, err = re.svc.Submit(ctx, &models.User{ID: 21}, 9, in)
	assert.ErrorIs(t, err, ErrConflict, "window closed")
}

func TestDecideSubmissionOnlyFromUnderReview(t *testing.T) {
	ctx := context.Background()
	re := newReviewerEnv()
	re.subs.subs = []models.Submission{
		{ID: 1, EventID: 9, AuthorID: 20, Status: models.SubmissionStatusSubmitted},
		{ID: 2, EventID: 9, AuthorID: 21, Status: models.SubmissionStatusUnderReview},
	}

	_, err := re.svc.DecideSubmission(ctx, re.owner, 1, true)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = re.svc.DecideSubmission(ctx, re.stranger, 2, true)
	assert.ErrorIs(t, err, ErrForbidden)

	sub, err := re.svc.DecideSubmission(ctx, re.owner, 2, true)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusAccepted, sub.Status)

	_, err = re.svc.DecideSubmission(ctx, re.owner, 2, false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMyAssignmentsHidesAuthorWhenDoubleBlind(t *testing.T) {
	ctx := context.Background()
	re := newReviewerEnv()
	reviewer := &models.User{ID: 30}
	re.work.details = []models.AssignmentDetail{
		{Assignment: models.Assignment{ID: 1, ReviewerID: 30}, EventID: 9, AuthorID: 20, Title: "A"},
		{Assignment: models.Assignment{ID: 2, ReviewerID: 30}, EventID: 10, AuthorID: 21, Title: "B"},
	}
	re.configStore.mutate(1, ptr(int64(9)), func(c *models.TenantConfig) { c.ModeloRevisao = models.ReviewModelDoubleBlind })

	list, err := re.svc.MyAssignments(ctx, reviewer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Zero(t, list[0].AuthorID)
	assert.Equal(t, int64(21), list[1].AuthorID)

	empty, err := re.svc.MyAssignments(ctx, &models.User{ID: 99})
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestCompleteAssignment(t *testing.T) {
	ctx := context.Background()
	re := newReviewerEnv()
	reviewer := &models.User{ID: 30}
	re.work.details = []models.AssignmentDetail{{Assignment: models.Assignment{ID: 1, ReviewerID: 30}, EventID: 9}}

	assert.ErrorIs(t, re.svc.CompleteAssignment(ctx, reviewer, 1, "maybe", ""), ErrValidation)
	assert.ErrorIs(t, re.svc.CompleteAssignment(ctx, &models.User{ID: 31}, 1, RecommendAccept, ""), ErrNotFound)
	require.NoError(t, re.svc.CompleteAssignment(ctx, reviewer, 1, RecommendRevise, "tighten section 2"))
	assert.Equal(t, RecommendRevise, re.work.completed[1])
	assert.ErrorIs(t, re.svc.CompleteAssignment(ctx, reviewer, 1, RecommendAccept, ""), ErrNotFound)
}
