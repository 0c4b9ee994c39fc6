package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"
)

// FormRepository handles form database operations
type FormRepository struct {
	db *sql.DB
}

// NewFormRepository creates a new form repository
func NewFormRepository(db *sql.DB) *FormRepository {
	return &FormRepository{db: db}
}

// Create creates a new form
func (r *FormRepository) Create(ctx context.Context, form *models.Form) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO forms (tenant_id, event_id, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		form.TenantID, form.EventID, form.Name, form.Description, now,
	).Scan(&form.ID)
	if err != nil {
		return fmt.Errorf("failed to create form: %w", mapError(err))
	}
	form.CreatedAt = now
	return nil
}

// ListByTenant lists the forms of a tenant
func (r *FormRepository) ListByTenant(ctx context.Context, tenantID int64) ([]models.Form, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, event_id, name, description, created_at
		FROM forms WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer closeRows(rows)

	var forms []models.Form
	for rows.Next() {
		var f models.Form
		if err := rows.Scan(&f.ID, &f.TenantID, &f.EventID, &f.Name, &f.Description, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan form: %w", err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// CountByTenant counts the forms of a tenant
func (r *FormRepository) CountByTenant(ctx context.Context, tenantID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count forms: %w", err)
	}
	return n, nil
}
