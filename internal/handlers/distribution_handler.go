package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"evento/internal/service"
)

// DistributionHandler runs reviewer distribution and serves its reports
type DistributionHandler struct {
	distribution *service.DistributionService
	events       *service.EventService
	reportDir    string
}

// NewDistributionHandler creates a new distribution handler. Reports are
// written to reportDir.
func NewDistributionHandler(distribution *service.DistributionService, events *service.EventService, reportDir string) *DistributionHandler {
	return &DistributionHandler{distribution: distribution, events: events, reportDir: reportDir}
}

// Run distributes the event's submissions among its reviewers
// @Summary Run distribution
// @Description Assigns reviewers to every submission lacking them. Running again creates no duplicates.
// @Tags Distribution
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} models.DistributionLog
// @Failure 404 {object} errorResponse
// @Router /api/v1/events/{id}/distribution [post]
func (h *DistributionHandler) Run(w http.ResponseWriter, r *http.Request) {
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

	log, err := h.distribution.Distribute(r.Context(), eventID, &user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}

// Reassign hands an open assignment to another reviewer
// @Summary Reassign reviewer
// @Tags Distribution
// @Produce json
// @Security BearerAuth
// @Param id path int true "Assignment ID"
// @Success 200 {object} models.Assignment
// @Failure 409 {object} errorResponse
// @Router /api/v1/assignments/{id}/reassign [post]
func (h *DistributionHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}
	eventID, err := h.distribution.AssignmentEvent(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if _, err := h.events.Managed(r.Context(), user, eventID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	a, err := h.distribution.Reassign(r.Context(), id, &user.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

// Logs lists the distribution runs of an event
// @Summary List distribution runs
// @Tags Distribution
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {array} models.DistributionLog
// @Router /api/v1/events/{id}/distribution/logs [get]
func (h *DistributionHandler) Logs(w http.ResponseWriter, r *http.Request) {
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

	logs, err := h.distribution.Logs(r.Context(), eventID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, logs)
}

// Export writes the distribution spreadsheet and serves it
// @Summary Export distribution report
// @Tags Distribution
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {file} file
// @Router /api/v1/events/{id}/distribution/export [get]
func (h *DistributionHandler) Export(w http.ResponseWriter, r *http.Request) {
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

	path, err := h.distribution.ExportReport(r.Context(), eventID, h.reportDir)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}
