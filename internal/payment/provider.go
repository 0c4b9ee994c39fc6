// Package payment talks to the payment gateway used for paid registrations.
package payment

import (
	"context"
	"errors"

	"evento/internal/models"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrUnavailable     = errors.New("payment provider unavailable")
)

// Preference describes the checkout a registrant is sent to
type Preference struct {
	ExternalReference string
	Title             string
	AmountCents       int64
	PayerEmail        string
	NotificationURL   string
}

// Checkout is the provider's answer to a preference
type Checkout struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// Payment is the provider's view of one payment
type Payment struct {
	ID                string
	Status            string // one of the models.PaymentStatus* values
	ExternalReference string
}

// Provider creates checkouts and reads payments. accessToken is the
// credential of the tenant that owns the event.
type Provider interface {
	Name() string
	CreatePreference(ctx context.Context, accessToken string, p Preference) (*Checkout, error)
	GetPayment(ctx context.Context, accessToken, paymentID string) (*Payment, error)
}

// normalizeStatus maps provider states onto registration payment states
func normalizeStatus(status string) string {
	switch status {
	case "approved":
		return models.PaymentStatusApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return models.PaymentStatusRejected
	default:
		return models.PaymentStatusPending
	}
}
