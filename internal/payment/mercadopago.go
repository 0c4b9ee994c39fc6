package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"evento/internal/config"
	"evento/internal/metrics"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

const currencyBRL = "BRL"

// MercadoPago adapts the Mercado Pago SDK to Provider
type MercadoPago struct {
	requester *gatewayRequester
}

// NewMercadoPago creates the adapter from configuration. A BaseURL other
// than the public API redirects every SDK call, which sandboxes and tests use.
func NewMercadoPago(cfg config.PaymentConfig) *MercadoPago {
	r := &gatewayRequester{client: &http.Client{Timeout: cfg.Timeout}}
	if base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/")); err == nil && base.Host != "" {
		r.base = base
	}
	return &MercadoPago{requester: r}
}

// Name returns the provider key used for stored credentials
func (m *MercadoPago) Name() string { return "mercadopago" }

func (m *MercadoPago) sdkConfig(accessToken string) (*mpconfig.Config, error) {
	cfg, err := mpconfig.New(accessToken, mpconfig.WithHTTPClient(m.requester))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return cfg, nil
}

// buildPreference is the outbound checkout payload
func buildPreference(p Preference) preference.Request {
	req := preference.Request{
		Items: []preference.ItemRequest{{
			Title:      p.Title,
			Quantity:   1,
			UnitPrice:  float64(p.AmountCents) / 100,
			CurrencyID: currencyBRL,
		}},
		ExternalReference: p.ExternalReference,
		NotificationURL:   p.NotificationURL,
	}
	if p.PayerEmail != "" {
		req.Payer = &preference.PayerRequest{Email: p.PayerEmail}
	}
	return req
}

// CreatePreference creates a checkout preference and returns its init point
func (m *MercadoPago) CreatePreference(ctx context.Context, accessToken string, p Preference) (*Checkout, error) {
	cfg, err := m.sdkConfig(accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := preference.NewClient(cfg).Create(ctx, buildPreference(p))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.InitPoint == "" {
		return nil, fmt.Errorf("%w: preference without init point", ErrUnavailable)
	}
	return &Checkout{ID: resp.ID, InitPoint: resp.InitPoint}, nil
}

// GetPayment fetches a payment by id
func (m *MercadoPago) GetPayment(ctx context.Context, accessToken, paymentID string) (*Payment, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil || id <= 0 {
		return nil, ErrPaymentNotFound
	}
	cfg, err := m.sdkConfig(accessToken)
	if err != nil {
		return nil, err
	}

	var status int
	resp, err := mppayment.NewClient(cfg).Get(withStatusRecorder(ctx, &status), id)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Payment{
		ID:                strconv.Itoa(resp.ID),
		Status:            normalizeStatus(resp.Status),
		ExternalReference: resp.ExternalReference,
	}, nil
}

type statusKey struct{}

// withStatusRecorder makes the requester store the HTTP status of the call
// made with ctx into status
func withStatusRecorder(ctx context.Context, status *int) context.Context {
	return context.WithValue(ctx, statusKey{}, status)
}

// gatewayRequester is the HTTP client handed to the SDK. It records call
// metrics and optionally rewrites the API host.
type gatewayRequester struct {
	base   *url.URL
	client *http.Client
}

func (g *gatewayRequester) Do(req *http.Request) (*http.Response, error) {
	if g.base != nil {
		req.URL.Scheme = g.base.Scheme
		req.URL.Host = g.base.Host
		req.URL.Path = g.base.Path + req.URL.Path
		req.Host = ""
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case resp.StatusCode == http.StatusNotFound:
		outcome = "not_found"
	case resp.StatusCode >= 300:
		outcome = "error"
	}
	metrics.ObserveExternalCall("mercadopago", outcome, time.Since(start))

	if status, ok := req.Context().Value(statusKey{}).(*int); ok && resp != nil {
		*status = resp.StatusCode
	}
	return resp, err
}
