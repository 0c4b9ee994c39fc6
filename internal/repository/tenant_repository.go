package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evento/internal/models"
)

// TenantRepository handles tenant database operations
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// CreateWithOwner creates a tenant and its client user in one transaction
func (r *TenantRepository) CreateWithOwner(ctx context.Context, tenant *models.Tenant, owner *models.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO tenants (name, is_active, created_at, updated_at) VALUES ($1, TRUE, $2, $2) RETURNING id`,
		tenant.Name, now,
	).Scan(&tenant.ID)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", mapError(err))
	}
	tenant.IsActive = true
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	owner.Tipo = models.UserTypeClient
	owner.TenantID = &tenant.ID
	if err := insertUser(ctx, tx, owner); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", mapError(err))
	}
	return t, nil
}

// List returns all tenants ordered by id
func (r *TenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer closeRows(rows)

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// SetActive activates or deactivates a tenant
func (r *TenantRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return requireAffected(res)
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("Failed to rollback transaction", "error", err)
	}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
