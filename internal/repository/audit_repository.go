package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (user_id, action, resource, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		log.UserID, log.Action, log.Resource, log.Details, log.IPAddress, log.UserAgent, now,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	log.CreatedAt = now
	return nil
}

// List retrieves audit logs, newest first. A non-nil userID filters by actor.
func (r *AuditRepository) List(ctx context.Context, userID *int64, limit, offset int) ([]models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, resource, COALESCE(details, ''), COALESCE(ip_address, ''),
			COALESCE(user_agent, ''), created_at
		FROM audit_logs
		WHERE $1::BIGINT IS NULL OR user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer closeRows(rows)

	var logs []models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		if err := rows.Scan(&log.ID, &log.UserID, &log.Action, &log.Resource, &log.Details,
			&log.IPAddress, &log.UserAgent, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
