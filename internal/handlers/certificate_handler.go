package handlers

import (
	"net/http"

	"evento/internal/models"
	"evento/internal/service"
)

// CertificateHandler handles eligibility checks and certificate issuance
type CertificateHandler struct {
	certificates *service.CertificateService
	events       *service.EventService
}

// NewCertificateHandler creates a new certificate handler
func NewCertificateHandler(certificates *service.CertificateService, events *service.EventService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, events: events}
}

// EligibilityResponse is the outcome of an eligibility check
type EligibilityResponse struct {
	UserID   int64    `json:"user_id"`
	EventID  int64    `json:"evento_id"`
	Eligible bool     `json:"eligible"`
	Pending  []string `json:"pending"`
}

// IssueRequest selects the certificate type and, for clients, the participant
type IssueRequest struct {
	UserID *int64 `json:"user_id"`
	Tipo   string `json:"tipo"`
}

// subject resolves whose certificate a request is about. Users act for
// themselves; acting for someone else requires managing the event.
func (h *CertificateHandler) subject(r *http.Request, actor *models.User, eventID int64, requested *int64) (int64, error) {
	if requested == nil || *requested == actor.ID {
		return actor.ID, nil
	}
	if _, err := h.events.Managed(r.Context(), actor, eventID); err != nil {
		return 0, err
	}
	return *requested, nil
}

// Verify checks whether a participant qualifies for a certificate
// @Summary Check certificate eligibility
// @Description Lists every unmet criterion. Clients may check any participant of their events.
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param user_id query int false "Participant (clients)"
// @Success 200 {object} EligibilityResponse
// @Router /api/v1/events/{id}/certificates/eligibility [get]
func (h *CertificateHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	requested, err := queryID(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := h.subject(r, user, eventID, requested)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if _, err := h.events.Get(r.Context(), eventID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	eligible, pending, err := h.certificates.Verify(r.Context(), userID, eventID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, EligibilityResponse{
		UserID:   userID,
		EventID:  eventID,
		Eligible: eligible,
		Pending:  pending,
	})
}

// Issue issues a certificate
// @Summary Issue certificate
// @Description Issues a certificate after checking eligibility. 422 lists the unmet criteria.
// @Tags Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body IssueRequest false "Type and participant"
// @Success 201 {object} models.Certificate
// @Failure 409 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /api/v1/events/{id}/certificates [post]
func (h *CertificateHandler) Issue(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Tipo == "" {
		req.Tipo = models.CertificateTypeParticipant
	}
	userID, err := h.subject(r, user, eventID, req.UserID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	cert, err := h.certificates.Issue(r.Context(), &user.ID, userID, eventID, req.Tipo)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, cert)
}

// IssueForEvent issues certificates to every eligible registrant
// @Summary Issue certificates for an event
// @Tags Certificates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body IssueRequest false "Type"
// @Success 200 {object} service.BulkIssueResult
// @Router /api/v1/events/{id}/certificates/bulk [post]
func (h *CertificateHandler) IssueForEvent(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Tipo == "" {
		req.Tipo = models.CertificateTypeParticipant
	}
	if _, err := h.events.Managed(r.Context(), user, eventID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	res, err := h.certificates.IssueForEvent(r.Context(), &user.ID, eventID, req.Tipo)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// Lookup verifies a certificate code
// @Summary Verify certificate code
// @Tags Certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} models.Certificate
// @Failure 404 {object} errorResponse
// @Router /api/v1/certificates/{code} [get]
func (h *CertificateHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	cert, err := h.certificates.Lookup(r.Context(), r.PathValue("code"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cert)
}
