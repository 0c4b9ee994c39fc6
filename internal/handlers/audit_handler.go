package handlers

import (
	"net/http"
	"strconv"

	"evento/internal/service"
)

// AuditHandler handles audit log requests
type AuditHandler struct {
	auditService *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ListAuditLogs lists audit logs with pagination (admin only)
// @Summary List audit logs
// @Description Get a paginated list of audit logs, newest first
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Param user_id query int false "Filter by user ID"
// @Success 200 {array} models.AuditLog
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Router /api/v1/admin/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 50

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	userID, err := queryID(r, "user_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.auditService.List(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, logs)
}
