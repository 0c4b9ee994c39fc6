package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"
)

const submissionColumns = `id, event_id, author_id, title, abstract, status, created_at, updated_at`

// SubmissionRepository handles submissions
type SubmissionRepository struct {
	db *sql.DB
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func scanSubmission(row scanner) (*models.Submission, error) {
	s := &models.Submission{}
	if err := row.Scan(&s.ID, &s.EventID, &s.AuthorID, &s.Title, &s.Abstract, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// Create stores a new submission in status submitted. An author may submit
// only once per event.
func (r *SubmissionRepository) Create(ctx context.Context, s *models.Submission) error {
	now := time.Now()
	s.Status = models.SubmissionStatusSubmitted
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO submissions (event_id, author_id, title, abstract, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`,
		s.EventID, s.AuthorID, s.Title, s.Abstract, s.Status, now,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", mapError(err))
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// GetByID retrieves a submission by ID
func (r *SubmissionRepository) GetByID(ctx context.Context, id int64) (*models.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", mapError(err))
	}
	return s, nil
}

// ListByEvent lists the submissions of an event in id order
func (r *SubmissionRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.Submission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE event_id = $1 ORDER BY id`, eventID)
}

// ListDistributable lists submissions still open for review, in id order
func (r *SubmissionRepository) ListDistributable(ctx context.Context, eventID int64) ([]models.Submission, error) {
	return r.list(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE event_id = $1 AND status IN ('submitted', 'under_review')
		ORDER BY id`, eventID)
}

func (r *SubmissionRepository) list(ctx context.Context, query string, args ...any) ([]models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer closeRows(rows)

	var subs []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// Transition moves a submission from one status to another. It returns
// ErrNotFound when the submission is not currently in status from.
func (r *SubmissionRepository) Transition(ctx context.Context, id int64, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	return requireAffected(res)
}
