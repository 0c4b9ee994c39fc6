package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PaymentCredentialRepository stores encrypted per-tenant gateway credentials
type PaymentCredentialRepository struct {
	db *sql.DB
}

// NewPaymentCredentialRepository creates a new credential repository
func NewPaymentCredentialRepository(db *sql.DB) *PaymentCredentialRepository {
	return &PaymentCredentialRepository{db: db}
}

// Get returns the stored ciphertext, or ErrNotFound
func (r *PaymentCredentialRepository) Get(ctx context.Context, tenantID int64, provider string) (string, error) {
	var ciphertext string
	err := r.db.QueryRowContext(ctx, `
		SELECT ciphertext FROM tenant_payment_credentials
		WHERE tenant_id = $1 AND provider = $2`, tenantID, provider).Scan(&ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to get payment credential: %w", mapError(err))
	}
	return ciphertext, nil
}

// Put creates or replaces the ciphertext of a tenant's credential
func (r *PaymentCredentialRepository) Put(ctx context.Context, tenantID int64, provider, ciphertext string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_payment_credentials (tenant_id, provider, ciphertext, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, provider) DO UPDATE SET ciphertext = EXCLUDED.ciphertext, updated_at = NOW()`,
		tenantID, provider, ciphertext)
	if err != nil {
		return fmt.Errorf("failed to save payment credential: %w", mapError(err))
	}
	return nil
}
