package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"
)

// CheckinRepository handles workshops and check-ins
type CheckinRepository struct {
	db *sql.DB
}

// NewCheckinRepository creates a new check-in repository
func NewCheckinRepository(db *sql.DB) *CheckinRepository {
	return &CheckinRepository{db: db}
}

// CreateWorkshop adds a workshop to an event
func (r *CheckinRepository) CreateWorkshop(ctx context.Context, w *models.Workshop) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO workshops (event_id, name, created_at) VALUES ($1, $2, $3) RETURNING id`,
		w.EventID, w.Name, now,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to create workshop: %w", mapError(err))
	}
	w.CreatedAt = now
	return nil
}

// ListWorkshops lists the workshops of an event
func (r *CheckinRepository) ListWorkshops(ctx context.Context, eventID int64) ([]models.Workshop, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, name, created_at FROM workshops WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workshops: %w", err)
	}
	defer closeRows(rows)

	var workshops []models.Workshop
	for rows.Next() {
		var w models.Workshop
		if err := rows.Scan(&w.ID, &w.EventID, &w.Name, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workshop: %w", err)
		}
		workshops = append(workshops, w)
	}
	return workshops, rows.Err()
}

// Create records a check-in
func (r *CheckinRepository) Create(ctx context.Context, c *models.Checkin) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO checkins (user_id, event_id, workshop_id, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.UserID, c.EventID, c.WorkshopID, now,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create checkin: %w", mapError(err))
	}
	c.CreatedAt = now
	return nil
}

// ListByUserEvent returns the check-ins of one user in one event
func (r *CheckinRepository) ListByUserEvent(ctx context.Context, userID, eventID int64) ([]models.Checkin, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, event_id, workshop_id, created_at
		FROM checkins WHERE user_id = $1 AND event_id = $2 ORDER BY id`, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkins: %w", err)
	}
	defer closeRows(rows)

	var checkins []models.Checkin
	for rows.Next() {
		var c models.Checkin
		if err := rows.Scan(&c.ID, &c.UserID, &c.EventID, &c.WorkshopID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}
