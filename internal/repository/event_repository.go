package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"
)

const eventColumns = `id, tenant_id, name, description, starts_at, ends_at, submissions_open,
	valor_inscricao, created_at, updated_at`

// EventRepository handles event database operations
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row scanner) (*models.Event, error) {
	e := &models.Event{}
	err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.Description, &e.StartsAt, &e.EndsAt,
		&e.SubmissionsOpen, &e.ValorInscricao, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create creates a new event
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO events (tenant_id, name, description, starts_at, ends_at, submissions_open, valor_inscricao, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		event.TenantID, event.Name, event.Description, event.StartsAt, event.EndsAt,
		event.SubmissionsOpen, event.ValorInscricao, now,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", mapError(err))
	}
	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", mapError(err))
	}
	return e, nil
}

// ListByTenant lists the events of a tenant
func (r *EventRepository) ListByTenant(ctx context.Context, tenantID int64) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer closeRows(rows)

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CountByTenant counts the live events of a tenant
func (r *EventRepository) CountByTenant(ctx context.Context, tenantID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// SetSubmissionsOpen opens or closes the submission window of an event
func (r *EventRepository) SetSubmissionsOpen(ctx context.Context, id int64, open bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET submissions_open = $2, updated_at = NOW() WHERE id = $1`, id, open)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return requireAffected(res)
}
