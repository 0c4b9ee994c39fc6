package handlers

import (
	"net/http"

	"evento/internal/service"
)

// ReviewerHandler handles reviewer recruitment, submissions and reviews
type ReviewerHandler struct {
	reviewers *service.ReviewerService
}

// NewReviewerHandler creates a new reviewer handler
func NewReviewerHandler(reviewers *service.ReviewerService) *ReviewerHandler {
	return &ReviewerHandler{reviewers: reviewers}
}

// DecisionRequest approves or rejects a candidature or submission
type DecisionRequest struct {
	Approve *bool `json:"approve"`
}

// CompleteRequest is a reviewer's verdict
type CompleteRequest struct {
	Recommendation string `json:"recommendation"`
	Comments       string `json:"comments"`
}

// CreateProcess opens a call for reviewers
// @Summary Create reviewer process
// @Tags Reviewers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProcessInput true "Process"
// @Success 201 {object} models.ReviewerProcess
// @Router /api/v1/reviewer-processes [post]
func (h *ReviewerHandler) CreateProcess(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.ProcessInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.reviewers.CreateProcess(r.Context(), user, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

// ListProcesses returns the reviewer processes of the caller's tenant
// @Summary List reviewer processes
// @Tags Reviewers
// @Produce json
// @Security BearerAuth
// @Param cliente_id query int false "Tenant (admins)"
// @Success 200 {array} models.ReviewerProcess
// @Router /api/v1/reviewer-processes [get]
func (h *ReviewerHandler) ListProcesses(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	tenantID, err := queryID(r, "cliente_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.reviewers.ListProcesses(r.Context(), user, tenantID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// Apply records the caller's candidature
// @Summary Apply as reviewer
// @Tags Reviewers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Process ID"
// @Success 201 {object} models.ReviewerCandidature
// @Failure 409 {object} errorResponse
// @Router /api/v1/reviewer-processes/{id}/candidatures [post]
func (h *ReviewerHandler) Apply(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}

	c, err := h.reviewers.Apply(r.Context(), user, processID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

// ListCandidatures returns the candidatures of a process
// @Summary List candidatures
// @Tags Reviewers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Process ID"
// @Success 200 {array} models.ReviewerCandidature
// @Router /api/v1/reviewer-processes/{id}/candidatures [get]
func (h *ReviewerHandler) ListCandidatures(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	processID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}

	list, err := h.reviewers.ListCandidatures(r.Context(), user, processID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// Decide approves or rejects a pending candidature
// @Summary Decide candidature
// @Description Approval counts against limite_revisores
// @Tags Reviewers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Candidature ID"
// @Param request body DecisionRequest true "Decision"
// @Success 200 {object} models.ReviewerCandidature
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/candidatures/{id}/decision [put]
func (h *ReviewerHandler) Decide(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}
	var req DecisionRequest
	if err := decodeJSON(r, &req); err != nil || req.Approve == nil {
		respondWithError(w, http.StatusBadRequest, "approve is required")
		return
	}

	c, err := h.reviewers.Decide(r.Context(), user, id, *req.Approve)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

// Submit submits the caller's work to an event
// @Summary Submit work
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body service.SubmissionInput true "Submission"
// @Success 201 {object} models.Submission
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/events/{id}/submissions [post]
func (h *ReviewerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}
	var req service.SubmissionInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.reviewers.Submit(r.Context(), user, eventID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sub)
}

// ListSubmissions returns the submissions of an event
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {array} models.Submission
// @Router /api/v1/events/{id}/submissions [get]
func (h *ReviewerHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}

	list, err := h.reviewers.ListSubmissions(r.Context(), user, eventID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// DecideSubmission accepts or rejects a reviewed submission
// @Summary Decide submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Submission ID"
// @Param request body DecisionRequest true "Decision"
// @Success 200 {object} models.Submission
// @Failure 409 {object} errorResponse
// @Router /api/v1/submissions/{id}/decision [put]
func (h *ReviewerHandler) DecideSubmission(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}
	var req DecisionRequest
	if err := decodeJSON(r, &req); err != nil || req.Approve == nil {
		respondWithError(w, http.StatusBadRequest, "approve is required")
		return
	}

	sub, err := h.reviewers.DecideSubmission(r.Context(), user, id, *req.Approve)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// MyAssignments lists the caller's review assignments
// @Summary List my assignments
// @Tags Reviewers
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AssignmentDetail
// @Router /api/v1/reviewer/assignments [get]
func (h *ReviewerHandler) MyAssignments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.reviewers.MyAssignments(r.Context(), user)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// CompleteAssignment records the caller's review
// @Summary Complete assignment
// @Tags Reviewers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Assignment ID"
// @Param request body CompleteRequest true "Review"
// @Success 204
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/reviewer/assignments/{id}/complete [post]
func (h *ReviewerHandler) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidID)
		return
	}
	var req CompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reviewers.CompleteAssignment(r.Context(), user, id, req.Recommendation, req.Comments); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
