package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"

	"github.com/lib/pq"
)

// ReviewerRepository handles reviewer processes and candidatures
type ReviewerRepository struct {
	db *sql.DB
}

// NewReviewerRepository creates a new reviewer repository
func NewReviewerRepository(db *sql.DB) *ReviewerRepository {
	return &ReviewerRepository{db: db}
}

// CreateProcess creates a reviewer process
func (r *ReviewerRepository) CreateProcess(ctx context.Context, p *models.ReviewerProcess) error {
	now := time.Now()
	if p.EventIDs == nil {
		p.EventIDs = []int64{}
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reviewer_processes (tenant_id, name, event_ids, is_open, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.TenantID, p.Name, pq.Array(p.EventIDs), p.IsOpen, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create reviewer process: %w", mapError(err))
	}
	p.CreatedAt = now
	return nil
}

// GetProcess retrieves a reviewer process by ID
func (r *ReviewerRepository) GetProcess(ctx context.Context, id int64) (*models.ReviewerProcess, error) {
	p := &models.ReviewerProcess{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, event_ids, is_open, created_at
		FROM reviewer_processes WHERE id = $1`, id,
	).Scan(&p.ID, &p.TenantID, &p.Name, pq.Array(&p.EventIDs), &p.IsOpen, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer process: %w", mapError(err))
	}
	return p, nil
}

// ListProcesses lists the reviewer processes of a tenant
func (r *ReviewerRepository) ListProcesses(ctx context.Context, tenantID int64) ([]models.ReviewerProcess, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, event_ids, is_open, created_at
		FROM reviewer_processes WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewer processes: %w", err)
	}
	defer closeRows(rows)

	var processes []models.ReviewerProcess
	for rows.Next() {
		var p models.ReviewerProcess
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, pq.Array(&p.EventIDs), &p.IsOpen, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer process: %w", err)
		}
		processes = append(processes, p)
	}
	return processes, rows.Err()
}

// CreateCandidature registers a pending application to a process
func (r *ReviewerRepository) CreateCandidature(ctx context.Context, c *models.ReviewerCandidature) error {
	now := time.Now()
	c.Status = models.CandidatureStatusPending
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reviewer_candidatures (process_id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		c.ProcessID, c.UserID, c.Status, now,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create candidature: %w", mapError(err))
	}
	c.CreatedAt = now
	return nil
}

// GetCandidature retrieves a candidature by ID
func (r *ReviewerRepository) GetCandidature(ctx context.Context, id int64) (*models.ReviewerCandidature, error) {
	c := &models.ReviewerCandidature{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, process_id, user_id, status, created_at, decided_at
		FROM reviewer_candidatures WHERE id = $1`, id,
	).Scan(&c.ID, &c.ProcessID, &c.UserID, &c.Status, &c.CreatedAt, &c.DecidedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidature: %w", mapError(err))
	}
	return c, nil
}

// ListCandidatures lists the candidatures of a process
func (r *ReviewerRepository) ListCandidatures(ctx context.Context, processID int64) ([]models.ReviewerCandidature, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, process_id, user_id, status, created_at, decided_at
		FROM reviewer_candidatures WHERE process_id = $1 ORDER BY id`, processID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidatures: %w", err)
	}
	defer closeRows(rows)

	var out []models.ReviewerCandidature
	for rows.Next() {
		var c models.ReviewerCandidature
		if err := rows.Scan(&c.ID, &c.ProcessID, &c.UserID, &c.Status, &c.CreatedAt, &c.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidature: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Decide moves a pending candidature to approved or rejected. Candidatures
// that are no longer pending are left untouched and ErrNotFound is returned.
func (r *ReviewerRepository) Decide(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reviewer_candidatures SET status = $2, decided_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, status)
	if err != nil {
		return fmt.Errorf("failed to decide candidature: %w", err)
	}
	return requireAffected(res)
}

// CountApprovedByTenant counts approved candidatures across a tenant's processes
func (r *ReviewerRepository) CountApprovedByTenant(ctx context.Context, tenantID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reviewer_candidatures c
		JOIN reviewer_processes p ON p.id = c.process_id
		WHERE p.tenant_id = $1 AND c.status = 'approved'`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviewers: %w", err)
	}
	return n, nil
}

// PoolForEvent returns the distinct user ids of approved reviewers whose
// process covers the event, ordered by id.
func (r *ReviewerRepository) PoolForEvent(ctx context.Context, tenantID, eventID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT c.user_id
		FROM reviewer_candidatures c
		JOIN reviewer_processes p ON p.id = c.process_id
		JOIN users u ON u.id = c.user_id
		WHERE p.tenant_id = $1
		  AND c.status = 'approved'
		  AND u.is_active
		  AND (cardinality(p.event_ids) = 0 OR $2 = ANY(p.event_ids))
		ORDER BY c.user_id`, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer pool: %w", err)
	}
	defer closeRows(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
