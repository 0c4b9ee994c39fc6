package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"evento/internal/middleware"
	"evento/internal/service"
)

// webhook bodies larger than this are not gateway notifications
const maxWebhookBody = 64 << 10

// RegistrationHandler handles event registrations and payment notifications
type RegistrationHandler struct {
	registrations *service.RegistrationService
	payments      *service.PaymentService
	events        *service.EventService
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(registrations *service.RegistrationService, payments *service.PaymentService, events *service.EventService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, payments: payments, events: events}
}

// Register enrols the caller in an event
// @Summary Register for event
// @Description Verifies the CAPTCHA, enforces required fields and the registrant quota. Paid events return a checkout link.
// @Tags Registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body service.RegistrationInput true "Registration"
// @Success 201 {object} service.RegistrationResult
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /api/v1/events/{id}/registrations [post]
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req service.RegistrationInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.registrations.Register(r.Context(), user, eventID, req, middleware.ClientIP(r))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	slog.Info("Participant registered", "event_id", eventID, "user_id", user.ID, "payment_status", res.Registration.PaymentStatus)
	respondWithJSON(w, http.StatusCreated, res)
}

// List returns the registrations of an event
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {array} models.Registration
// @Router /api/v1/events/{id}/registrations [get]
func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	if _, err := h.events.Managed(r.Context(), user, eventID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	regs, err := h.registrations.List(r.Context(), eventID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, regs)
}

// PaymentWebhook receives gateway notifications. It always answers 200 so
// the gateway does not retry payloads that can never be applied.
// @Summary Payment notification
// @Tags Payments
// @Accept json
// @Produce json
// @Param cliente_id query int false "Tenant the notification URL was issued for"
// @Success 200 {object} map[string]string
// @Router /webhooks/payments [post]
func (h *RegistrationHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Warn("Failed to read payment notification", "error", err)
		respondWithJSON(w, http.StatusOK, map[string]string{"status": service.WebhookMalformed})
		return
	}

	// a bad cliente_id falls back to the platform credential
	tenantID, err := queryID(r, "cliente_id")
	if err != nil {
		slog.Warn("Ignoring malformed cliente_id on payment notification", "value", r.URL.Query().Get("cliente_id"))
		tenantID = nil
	}

	outcome := h.payments.HandleNotification(r.Context(), body, tenantID)
	slog.Info("Payment notification handled", "outcome", outcome)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": outcome})
}
