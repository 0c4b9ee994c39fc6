package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evento/internal/config"
	"evento/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *MercadoPago {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMercadoPago(config.PaymentConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})
}

func TestCreatePreference(t *testing.T) {
	mp := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer tenant-token", r.Header.Get("Authorization"))

		var body struct {
			Items []struct {
				UnitPrice  float64 `json:"unit_price"`
				CurrencyID string  `json:"currency_id"`
			} `json:"items"`
			Payer *struct {
				Email string `json:"email"`
			} `json:"payer"`
			ExternalReference string `json:"external_reference"`
			NotificationURL   string `json:"notification_url"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, 150.5, body.Items[0].UnitPrice)
		assert.Equal(t, "BRL", body.Items[0].CurrencyID)
		assert.Equal(t, "ref-1", body.ExternalReference)
		assert.Equal(t, "https://example.com/webhooks/payments", body.NotificationURL)
		require.NotNil(t, body.Payer)
		assert.Equal(t, "ana@example.com", body.Payer.Email)

		_, _ = w.Write([]byte(`{"id": "pref-1", "init_point": "https://pay.example/pref-1"}`))
	})

	out, err := mp.CreatePreference(context.Background(), "tenant-token", Preference{
		ExternalReference: "ref-1",
		Title:             "Congress registration",
		AmountCents:       15050,
		PayerEmail:        "ana@example.com",
		NotificationURL:   "https://example.com/webhooks/payments",
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", out.ID)
	assert.Equal(t, "https://pay.example/pref-1", out.InitPoint)
}

func TestCreatePreference_ProviderError(t *testing.T) {
	mp := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	})

	_, err := mp.CreatePreference(context.Background(), "bad", Preference{AmountCents: 100})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetPayment(t *testing.T) {
	tests := []struct {
		providerStatus string
		want           string
	}{
		{"approved", models.PaymentStatusApproved},
		{"rejected", models.PaymentStatusRejected},
		{"refunded", models.PaymentStatusRejected},
		{"in_process", models.PaymentStatusPending},
		{"pending", models.PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.providerStatus, func(t *testing.T) {
			mp := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/payments/123", r.URL.Path)
				_, _ = w.Write([]byte(`{"id": 123, "status": "` + tt.providerStatus + `", "external_reference": "ref-9"}`))
			})

			p, err := mp.GetPayment(context.Background(), "token", "123")
			require.NoError(t, err)
			assert.Equal(t, "123", p.ID)
			assert.Equal(t, tt.want, p.Status)
			assert.Equal(t, "ref-9", p.ExternalReference)
		})
	}
}

func TestGetPayment_NotFound(t *testing.T) {
	mp := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := mp.GetPayment(context.Background(), "token", "999")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestGetPayment_ProviderError(t *testing.T) {
	mp := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	})

	_, err := mp.GetPayment(context.Background(), "token", "999")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrPaymentNotFound)
}

func TestGetPayment_NonNumericID(t *testing.T) {
	mp := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := mp.GetPayment(context.Background(), "token", "abc")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
