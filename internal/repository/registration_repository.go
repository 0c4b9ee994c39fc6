package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"
)

const registrationColumns = `id, event_id, user_id, name, cpf, email, phone, institution,
	payment_status, external_reference, payment_id, created_at, updated_at`

// RegistrationRepository handles event registrations
type RegistrationRepository struct {
	db *sql.DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func scanRegistration(row scanner) (*models.Registration, error) {
	reg := &models.Registration{}
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Name, &reg.CPF, &reg.Email, &reg.Phone,
		&reg.Institution, &reg.PaymentStatus, &reg.ExternalReference, &reg.PaymentID,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Create creates a registration. A second registration of the same user for
// the same event returns ErrDuplicate.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO registrations (event_id, user_id, name, cpf, email, phone, institution,
			payment_status, external_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`,
		reg.EventID, reg.UserID, reg.Name, reg.CPF, reg.Email, reg.Phone, reg.Institution,
		reg.PaymentStatus, reg.ExternalReference, now,
	).Scan(&reg.ID)
	if err != nil {
		return fmt.Errorf("failed to create registration: %w", mapError(err))
	}
	reg.CreatedAt = now
	reg.UpdatedAt = now
	return nil
}

// GetByID retrieves a registration by ID
func (r *RegistrationRepository) GetByID(ctx context.Context, id int64) (*models.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", mapError(err))
	}
	return reg, nil
}

// GetByExternalReference retrieves the registration a payment refers to
func (r *RegistrationRepository) GetByExternalReference(ctx context.Context, ref string) (*models.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE external_reference = $1`, ref))
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", mapError(err))
	}
	return reg, nil
}

// GetByUserEvent retrieves the registration of a user for an event
func (r *RegistrationRepository) GetByUserEvent(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 AND event_id = $2`, userID, eventID))
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", mapError(err))
	}
	return reg, nil
}

// ListByEvent lists the registrations of an event
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.Registration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer closeRows(rows)

	var regs []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// CountByTenant counts registrations across every event of a tenant
func (r *RegistrationRepository) CountByTenant(ctx context.Context, tenantID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM registrations reg
		JOIN events e ON e.id = reg.event_id
		WHERE e.tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return n, nil
}

// UpdatePaymentStatus records the outcome of a payment for a registration
func (r *RegistrationRepository) UpdatePaymentStatus(ctx context.Context, id int64, status, paymentID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registrations SET payment_status = $2, payment_id = $3, updated_at = NOW()
		WHERE id = $1`, id, status, paymentID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return requireAffected(res)
}
