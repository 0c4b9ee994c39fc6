package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"evento/internal/metrics"
	"evento/internal/models"
	"evento/internal/payment"
	"evento/internal/repository"
	"evento/internal/vault"
)

// Webhook outcomes, also used as metric labels
const (
	WebhookIgnored   = "ignored"
	WebhookMalformed = "malformed"
	WebhookDuplicate = "duplicate"
	WebhookUnknown   = "unknown_reference"
	WebhookUnchanged = "unchanged"
	WebhookUpdated   = "updated"
	WebhookError     = "error"
)

// CredentialStore persists encrypted gateway credentials
type CredentialStore interface {
	Get(ctx context.Context, tenantID int64, provider string) (string, error)
	Put(ctx context.Context, tenantID int64, provider, ciphertext string) error
}

// Cipher encrypts values bound to a tenant
type Cipher interface {
	Encrypt(ctx context.Context, keyName string, tenantID int64, plaintext []byte) (string, error)
	Decrypt(ctx context.Context, keyName string, tenantID int64, ciphertext string) ([]byte, error)
}

// Deduper remembers processed keys for a while
type Deduper interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// PaymentOptions configures PaymentService
type PaymentOptions struct {
	PlatformToken   string
	NotificationURL string
	DedupeTTL       time.Duration
}

// PaymentService creates checkouts and applies gateway notifications.
// Cipher and Deduper are optional.
type PaymentService struct {
	provider      payment.Provider
	credentials   CredentialStore
	cipher        Cipher
	dedupe        Deduper
	registrations RegistrationStore
	events        EventLookup
	audit         Auditor
	opts          PaymentOptions
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	provider payment.Provider,
	credentials CredentialStore,
	cipher Cipher,
	dedupe Deduper,
	registrations RegistrationStore,
	events EventLookup,
	audit Auditor,
	opts PaymentOptions,
) *PaymentService {
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 24 * time.Hour
	}
	return &PaymentService{
		provider:      provider,
		credentials:   credentials,
		cipher:        cipher,
		dedupe:        dedupe,
		registrations: registrations,
		events:        events,
		audit:         audit,
		opts:          opts,
	}
}

// StoreCredential encrypts and saves a tenant's gateway access token
func (s *PaymentService) StoreCredential(ctx context.Context, actor *models.User, tenantID int64, token string) error {
	if !actor.IsAdmin() && !actor.OwnsTenant(tenantID) {
		return fmt.Errorf("tenant %d: %w", tenantID, ErrForbidden)
	}
	if token == "" {
		return validationError("access token is required")
	}
	if s.cipher == nil {
		return validationError("per-tenant credentials need Vault to be enabled")
	}

	ciphertext, err := s.cipher.Encrypt(ctx, vault.CredentialKey, tenantID, []byte(token))
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", ErrExternalService)
	}
	if err := s.credentials.Put(ctx, tenantID, s.provider.Name(), ciphertext); err != nil {
		return err
	}

	s.audit.Log(ctx, &actor.ID, AuditCredentialStored, "tenant", "tenant=%d provider=%s", tenantID, s.provider.Name())
	return nil
}

// accessToken returns the tenant's own token when one is stored, otherwise
// the platform token
func (s *PaymentService) accessToken(ctx context.Context, tenantID int64) (string, error) {
	if s.cipher != nil {
		ciphertext, err := s.credentials.Get(ctx, tenantID, s.provider.Name())
		switch {
		case err == nil:
			plain, err := s.cipher.Decrypt(ctx, vault.CredentialKey, tenantID, ciphertext)
			if err != nil {
				slog.Error("Failed to decrypt payment credential", "tenant_id", tenantID, "error", err)
				return "", ErrExternalService
			}
			return string(plain), nil
		case !errors.Is(err, repository.ErrNotFound):
			return "", err
		}
	}
	if s.opts.PlatformToken == "" {
		return "", fmt.Errorf("no payment credential for tenant %d: %w", tenantID, ErrExternalService)
	}
	return s.opts.PlatformToken, nil
}

// Checkout creates a payment preference for a pending registration
func (s *PaymentService) Checkout(ctx context.Context, event *models.Event, reg *models.Registration) (*payment.Checkout, error) {
	if reg.ExternalReference == nil {
		return nil, validationError("registration has no payment reference")
	}
	token, err := s.accessToken(ctx, event.TenantID)
	if err != nil {
		return nil, err
	}

	notify := ""
	if s.opts.NotificationURL != "" {
		notify = s.opts.NotificationURL + "?" + url.Values{"cliente_id": {strconv.FormatInt(event.TenantID, 10)}}.Encode()
	}

	checkout, err := s.provider.CreatePreference(ctx, token, payment.Preference{
		ExternalReference: *reg.ExternalReference,
		Title:             event.Name,
		AmountCents:       event.ValorInscricao,
		PayerEmail:        reg.Email,
		NotificationURL:   notify,
	})
	if err != nil {
		slog.Error("Failed to create payment preference", "event_id", event.ID, "error", err)
		return nil, fmt.Errorf("create checkout: %w", ErrExternalService)
	}
	return checkout, nil
}

type notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// paymentID accepts the id as a JSON string or number
func (n notification) paymentID() string {
	var str string
	if err := json.Unmarshal(n.Data.ID, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(n.Data.ID, &num); err == nil {
		return num.String()
	}
	return ""
}

// HandleNotification applies a gateway notification. It never fails: the
// outcome is returned for logging and metrics. tenantID is the cliente_id
// the notification URL carried, if any.
func (s *PaymentService) HandleNotification(ctx context.Context, body []byte, tenantID *int64) string {
	outcome := s.handleNotification(ctx, body, tenantID)
	metrics.ObservePaymentWebhook(outcome)
	return outcome
}

func (s *PaymentService) handleNotification(ctx context.Context, body []byte, tenantID *int64) string {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		slog.Warn("Malformed payment notification", "error", err)
		return WebhookMalformed
	}
	if n.Type != "payment" {
		slog.Info("Ignoring payment notification", "type", n.Type, "action", n.Action)
		return WebhookIgnored
	}
	id := n.paymentID()
	if id == "" {
		slog.Warn("Payment notification without id")
		return WebhookMalformed
	}

	p, err := s.fetchPayment(ctx, id, tenantID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		slog.Warn("Payment from notification not found at provider", "payment_id", id)
		return WebhookUnknown
	}
	if err != nil {
		slog.Error("Failed to fetch payment from notification", "payment_id", id, "error", err)
		return WebhookError
	}

	// The gateway notifies the same payment on every status change, so the
	// status is part of the key.
	key := "payment:" + id + ":" + p.Status
	if s.dedupe != nil {
		first, err := s.dedupe.Once(ctx, key, s.opts.DedupeTTL)
		if err != nil {
			slog.Warn("Webhook dedupe unavailable", "error", err)
		} else if !first {
			return WebhookDuplicate
		}
	}

	outcome, err := s.applyPayment(ctx, p, tenantID)
	if err != nil {
		slog.Error("Failed to apply payment notification", "payment_id", id, "error", err)
		if s.dedupe != nil {
			if ferr := s.dedupe.Forget(ctx, key); ferr != nil {
				slog.Warn("Failed to clear webhook marker", "key", key, "error", ferr)
			}
		}
		return WebhookError
	}
	return outcome
}

// fetchPayment reads the payment with the credential of the notifying tenant
func (s *PaymentService) fetchPayment(ctx context.Context, paymentID string, tenantID *int64) (*payment.Payment, error) {
	token := s.opts.PlatformToken
	if tenantID != nil {
		var err error
		if token, err = s.accessToken(ctx, *tenantID); err != nil {
			return nil, err
		}
	}
	return s.provider.GetPayment(ctx, token, paymentID)
}

func (s *PaymentService) applyPayment(ctx context.Context, p *payment.Payment, tenantID *int64) (string, error) {
	paymentID := p.ID
	reg, err := s.registrations.GetByExternalReference(ctx, p.ExternalReference)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("Payment for unknown registration", "payment_id", paymentID, "external_reference", p.ExternalReference)
		return WebhookUnknown, nil
	}
	if err != nil {
		return "", err
	}

	if tenantID != nil {
		event, err := s.events.GetByID(ctx, reg.EventID)
		if err != nil {
			return "", err
		}
		if event.TenantID != *tenantID {
			slog.Warn("Payment notification for another tenant", "payment_id", paymentID, "tenant_id", *tenantID)
			return WebhookUnknown, nil
		}
	}

	if reg.PaymentStatus == p.Status || reg.PaymentStatus == models.PaymentStatusFree {
		return WebhookUnchanged, nil
	}
	if err := s.registrations.UpdatePaymentStatus(ctx, reg.ID, p.Status, p.ID); err != nil {
		return "", err
	}

	s.audit.Log(ctx, nil, AuditPaymentUpdated, "registration", "registration=%d payment=%s status=%s->%s",
		reg.ID, p.ID, reg.PaymentStatus, p.Status)
	return WebhookUpdated, nil
}
