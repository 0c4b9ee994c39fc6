package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evento/internal/models"

	"github.com/lib/pq"
)

// CertificateRepository handles certificate rules and issued certificates
type CertificateRepository struct {
	db *sql.DB
}

// NewCertificateRepository creates a new certificate repository
func NewCertificateRepository(db *sql.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// GetConfig returns the eligibility rules of an event, or ErrNotFound
func (r *CertificateRepository) GetConfig(ctx context.Context, eventID int64) (*models.CertificateConfig, error) {
	c := &models.CertificateConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, min_checkins, required_workshop_ids, min_attendance_percent, updated_at
		FROM certificate_configs WHERE event_id = $1`, eventID,
	).Scan(&c.ID, &c.EventID, &c.MinCheckins, pq.Array(&c.RequiredWorkshopIDs), &c.MinAttendancePercent, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate config: %w", mapError(err))
	}
	return c, nil
}

// UpsertConfig creates or replaces the eligibility rules of an event
func (r *CertificateRepository) UpsertConfig(ctx context.Context, c *models.CertificateConfig) error {
	if c.RequiredWorkshopIDs == nil {
		c.RequiredWorkshopIDs = []int64{}
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO certificate_configs (event_id, min_checkins, required_workshop_ids, min_attendance_percent, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			min_checkins = EXCLUDED.min_checkins,
			required_workshop_ids = EXCLUDED.required_workshop_ids,
			min_attendance_percent = EXCLUDED.min_attendance_percent,
			updated_at = NOW()
		RETURNING id, updated_at`,
		c.EventID, c.MinCheckins, pq.Array(c.RequiredWorkshopIDs), c.MinAttendancePercent,
	).Scan(&c.ID, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save certificate config: %w", mapError(err))
	}
	return nil
}

const certificateColumns = `id, user_id, event_id, tipo, liberado, verification_code, issued_at`

func scanCertificate(row scanner) (*models.Certificate, error) {
	c := &models.Certificate{}
	if err := row.Scan(&c.ID, &c.UserID, &c.EventID, &c.Tipo, &c.Liberado, &c.VerificationCode, &c.IssuedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// FindReleased returns the released certificate of a (user, event, type), or ErrNotFound
func (r *CertificateRepository) FindReleased(ctx context.Context, userID, eventID int64, tipo string) (*models.Certificate, error) {
	c, err := scanCertificate(r.db.QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM certificate_participants
		WHERE user_id = $1 AND event_id = $2 AND tipo = $3 AND liberado`, userID, eventID, tipo))
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", mapError(err))
	}
	return c, nil
}

// GetByCode looks a certificate up by its verification code
func (r *CertificateRepository) GetByCode(ctx context.Context, code string) (*models.Certificate, error) {
	c, err := scanCertificate(r.db.QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificate_participants WHERE verification_code = $1`, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", mapError(err))
	}
	return c, nil
}

// Create stores a released certificate. The partial unique index rejects a
// second released certificate of the same type with ErrDuplicate.
func (r *CertificateRepository) Create(ctx context.Context, c *models.Certificate) error {
	now := time.Now()
	c.Liberado = true
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO certificate_participants (user_id, event_id, tipo, liberado, verification_code, issued_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING id`,
		c.UserID, c.EventID, c.Tipo, c.VerificationCode, now,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", mapError(err))
	}
	c.IssuedAt = now
	return nil
}

// ListByUser lists the certificates of a user, newest first
func (r *CertificateRepository) ListByUser(ctx context.Context, userID int64) ([]models.Certificate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+certificateColumns+` FROM certificate_participants
		WHERE user_id = $1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer closeRows(rows)

	var out []models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
