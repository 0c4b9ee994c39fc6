package handlers

import (
	"net/http"

	"evento/internal/service"
)

// EventHandler handles events, forms, workshops and check-ins
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// Create creates an event
// @Summary Create event
// @Description Creates an event for the caller's tenant. Rejected with 403 once limite_eventos is reached.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.EventInput true "Event"
// @Success 201 {object} models.Event
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Router /api/v1/events [post]
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.EventInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.Create(r.Context(), user, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, event)
}

// List returns the events of the caller's tenant
// @Summary List events
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param cliente_id query int false "Tenant (admins)"
// @Success 200 {array} models.Event
// @Router /api/v1/events [get]
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	tenantID, err := queryID(r, "cliente_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.events.List(r.Context(), user, tenantID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

// Get returns one event
// @Summary Get event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} models.Event
// @Failure 404 {object} errorResponse
// @Router /api/v1/events/{id} [get]
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	event, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// SetSubmissionWindow opens or closes work submissions
// @Summary Open or close submissions
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body object true "{\"open\": bool}"
// @Success 200 {object} models.Event
// @Router /api/v1/events/{id}/submissions [put]
func (h *EventHandler) SetSubmissionWindow(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req struct {
		Open *bool `json:"open"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Open == nil {
		respondWithError(w, http.StatusBadRequest, "open is required")
		return
	}

	event, err := h.events.SetSubmissionWindow(r.Context(), user, eventID, *req.Open)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// CreateForm creates a form
// @Summary Create form
// @Description Rejected with 403 once limite_formularios is reached
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.FormInput true "Form"
// @Success 201 {object} models.Form
// @Failure 403 {object} errorResponse
// @Router /api/v1/forms [post]
func (h *EventHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.FormInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	form, err := h.events.CreateForm(r.Context(), user, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, form)
}

// ListForms returns the forms of the caller's tenant
// @Summary List forms
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param cliente_id query int false "Tenant (admins)"
// @Success 200 {array} models.Form
// @Router /api/v1/forms [get]
func (h *EventHandler) ListForms(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	tenantID, err := queryID(r, "cliente_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	forms, err := h.events.ListForms(r.Context(), user, tenantID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, forms)
}

// CreateWorkshop adds a workshop to an event
// @Summary Create workshop
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body object true "{\"name\": string}"
// @Success 201 {object} models.Workshop
// @Router /api/v1/events/{id}/workshops [post]
func (h *EventHandler) CreateWorkshop(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	workshop, err := h.events.CreateWorkshop(r.Context(), user, eventID, req.Name)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, workshop)
}

// ListWorkshops returns the workshops of an event
// @Summary List workshops
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {array} models.Workshop
// @Router /api/v1/events/{id}/workshops [get]
func (h *EventHandler) ListWorkshops(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	workshops, err := h.events.ListWorkshops(r.Context(), eventID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, workshops)
}

// CheckinRequest names who attended and, optionally, which workshop
type CheckinRequest struct {
	UserID     int64  `json:"user_id"`
	WorkshopID *int64 `json:"workshop_id"`
}

// RecordCheckin records a participant's presence
// @Summary Record check-in
// @Description workshop_id is required when checkin_global is disabled
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body CheckinRequest true "Check-in"
// @Success 201 {object} models.Checkin
// @Failure 400 {object} errorResponse
// @Router /api/v1/events/{id}/checkins [post]
func (h *EventHandler) RecordCheckin(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req CheckinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	checkin, err := h.events.RecordCheckin(r.Context(), user, eventID, req.UserID, req.WorkshopID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, checkin)
}

// SetCertificateRules stores the certificate eligibility rules of an event
// @Summary Set certificate rules
// @Tags Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body service.CertificateRulesInput true "Rules"
// @Success 200 {object} models.CertificateConfig
// @Router /api/v1/events/{id}/certificate-rules [put]
func (h *EventHandler) SetCertificateRules(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req service.CertificateRulesInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rules, err := h.events.SetCertificateRules(r.Context(), user, eventID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rules)
}
