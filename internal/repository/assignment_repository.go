package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evento/internal/models"

	"github.com/lib/pq"
)

const assignmentColumns = `a.id, a.submission_id, a.reviewer_id, a.deadline, a.completed, a.completed_at,
	a.is_reevaluation, a.recommendation, a.comments, a.created_at`

// AssignmentRepository handles reviewer assignments and distribution runs
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func scanAssignment(row scanner, extra ...any) (*models.Assignment, error) {
	a := &models.Assignment{}
	dest := []any{&a.ID, &a.SubmissionID, &a.ReviewerID, &a.Deadline, &a.Completed, &a.CompletedAt,
		&a.IsReevaluation, &a.Recommendation, &a.Comments, &a.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*models.Assignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments a WHERE a.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", mapError(err))
	}
	return a, nil
}

// ListByEvent returns every assignment of the event's submissions
func (r *AssignmentRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments a
		JOIN submissions s ON s.id = a.submission_id
		WHERE s.event_id = $1
		ORDER BY a.submission_id, a.reviewer_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer closeRows(rows)

	var out []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ActiveLoads counts the incomplete assignments of each reviewer
func (r *AssignmentRepository) ActiveLoads(ctx context.Context, reviewerIDs []int64) (map[int64]int, error) {
	loads := make(map[int64]int, len(reviewerIDs))
	if len(reviewerIDs) == 0 {
		return loads, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT reviewer_id, COUNT(*) FROM assignments
		WHERE NOT completed AND reviewer_id = ANY($1)
		GROUP BY reviewer_id`, pq.Array(reviewerIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to count reviewer loads: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer load: %w", err)
		}
		loads[id] = n
	}
	return loads, rows.Err()
}

const detailQuery = `
	SELECT ` + assignmentColumns + `, s.event_id, s.title, s.author_id, u.name, u.email
	FROM assignments a
	JOIN submissions s ON s.id = a.submission_id
	JOIN users u ON u.id = a.reviewer_id`

func (r *AssignmentRepository) listDetails(ctx context.Context, where string, args ...any) ([]models.AssignmentDetail, error) {
	rows, err := r.db.QueryContext(ctx, detailQuery+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer closeRows(rows)

	var out []models.AssignmentDetail
	for rows.Next() {
		var d models.AssignmentDetail
		a, err := scanAssignment(rows, &d.EventID, &d.Title, &d.AuthorID, &d.ReviewerName, &d.ReviewerEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		d.Assignment = *a
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListDetailsByEvent lists the assignments of an event with submission and reviewer data
func (r *AssignmentRepository) ListDetailsByEvent(ctx context.Context, eventID int64) ([]models.AssignmentDetail, error) {
	return r.listDetails(ctx, `WHERE s.event_id = $1 ORDER BY a.submission_id, a.reviewer_id`, eventID)
}

// ListDetailsByReviewer lists a reviewer's assignments, newest first
func (r *AssignmentRepository) ListDetailsByReviewer(ctx context.Context, reviewerID int64) ([]models.AssignmentDetail, error) {
	return r.listDetails(ctx, `WHERE a.reviewer_id = $1 ORDER BY a.deadline, a.id`, reviewerID)
}

// ListDueBefore lists incomplete assignments whose deadline falls before t
func (r *AssignmentRepository) ListDueBefore(ctx context.Context, t time.Time) ([]models.AssignmentDetail, error) {
	return r.listDetails(ctx, `WHERE NOT a.completed AND a.deadline <= $1 ORDER BY a.reviewer_id, a.deadline`, t)
}

// Complete records a reviewer's verdict on an open assignment
func (r *AssignmentRepository) Complete(ctx context.Context, id, reviewerID int64, recommendation, comments string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE assignments
		SET completed = TRUE, completed_at = NOW(), recommendation = $3, comments = $4
		WHERE id = $1 AND reviewer_id = $2 AND NOT completed`,
		id, reviewerID, recommendation, comments)
	if err != nil {
		return fmt.Errorf("failed to complete assignment: %w", err)
	}
	return requireAffected(res)
}

// Replace swaps the reviewer of an open assignment. The new row is flagged
// as a re-evaluation.
func (r *AssignmentRepository) Replace(ctx context.Context, old *models.Assignment, reviewerID int64, deadline time.Time) (*models.Assignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1 AND NOT completed`, old.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove assignment: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	a := &models.Assignment{
		SubmissionID:   old.SubmissionID,
		ReviewerID:     reviewerID,
		Deadline:       deadline,
		IsReevaluation: true,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO assignments (submission_id, reviewer_id, deadline, is_reevaluation)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, created_at`,
		a.SubmissionID, a.ReviewerID, a.Deadline,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reassignment: %w", err)
	}
	return a, nil
}

// SaveRun persists the assignments of a distribution run together with its
// log row. Pairs that already exist, for instance from a concurrent run, are
// skipped and not counted. Submissions that received a reviewer move from
// submitted to under_review.
func (r *AssignmentRepository) SaveRun(ctx context.Context, assignments []models.Assignment, log *models.DistributionLog) ([]models.Assignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var created []models.Assignment
	var touched []int64
	seen := make(map[int64]bool)
	for _, a := range assignments {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO assignments (submission_id, reviewer_id, deadline, is_reevaluation)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (submission_id, reviewer_id) DO NOTHING
			RETURNING id, created_at`,
			a.SubmissionID, a.ReviewerID, a.Deadline, a.IsReevaluation,
		).Scan(&a.ID, &a.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create assignment: %w", err)
		}
		created = append(created, a)
		if !seen[a.SubmissionID] {
			seen[a.SubmissionID] = true
			touched = append(touched, a.SubmissionID)
		}
	}

	if len(touched) > 0 {
		_, err := tx.ExecContext(ctx, `
			UPDATE submissions SET status = 'under_review', updated_at = NOW()
			WHERE id = ANY($1) AND status = 'submitted'`, pq.Array(touched))
		if err != nil {
			return nil, fmt.Errorf("failed to update submissions: %w", err)
		}
	}

	log.TotalAssignments = len(created)
	if len(log.Detail) == 0 {
		log.Detail = json.RawMessage(`{}`)
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO distribution_logs (run_id, event_id, actor_id, total_submissions, total_assignments,
			conflicts_detected, fallback_assignments, failed_assignments, started_at, finished_at, duration_ms, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		log.RunID, log.EventID, log.ActorID, log.TotalSubmissions, log.TotalAssignments,
		log.ConflictsDetected, log.FallbackAssignments, log.FailedAssignments,
		log.StartedAt, log.FinishedAt, log.DurationMS, string(log.Detail),
	).Scan(&log.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to write distribution log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit distribution run: %w", err)
	}
	return created, nil
}

// ListLogs returns the distribution runs of an event, newest first
func (r *AssignmentRepository) ListLogs(ctx context.Context, eventID int64) ([]models.DistributionLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, event_id, actor_id, total_submissions, total_assignments, conflicts_detected,
			fallback_assignments, failed_assignments, started_at, finished_at, duration_ms, detail
		FROM distribution_logs WHERE event_id = $1
		ORDER BY started_at DESC, id DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list distribution logs: %w", err)
	}
	defer closeRows(rows)

	var logs []models.DistributionLog
	for rows.Next() {
		var l models.DistributionLog
		var detail []byte
		if err := rows.Scan(&l.ID, &l.RunID, &l.EventID, &l.ActorID, &l.TotalSubmissions, &l.TotalAssignments,
			&l.ConflictsDetected, &l.FallbackAssignments, &l.FailedAssignments,
			&l.StartedAt, &l.FinishedAt, &l.DurationMS, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan distribution log: %w", err)
		}
		l.Detail = json.RawMessage(detail)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
