package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"evento/internal/service"
)

// ConfigHandler serves the tenant and event configuration endpoints
type ConfigHandler struct {
	configs *service.ConfigService
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(configs *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

// SettingResponse is the envelope of the toggle and set endpoints
type SettingResponse struct {
	Success bool   `json:"success"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// settingRequest carries the optional scope and, for set_, the new value
type settingRequest struct {
	EventID  *int64          `json:"evento_id"`
	TenantID *int64          `json:"cliente_id"`
	Value    json.RawMessage `json:"value"`
}

// readScope merges the scope from the query string with the one in the body.
// Query parameters win.
func readScope(r *http.Request) (service.Scope, json.RawMessage, error) {
	var req settingRequest
	if err := decodeJSON(r, &req); err != nil {
		return service.Scope{}, nil, err
	}
	scope := service.Scope{EventID: req.EventID, TenantID: req.TenantID}

	eventID, err := queryID(r, "evento_id")
	if err != nil {
		return service.Scope{}, nil, err
	}
	if eventID != nil {
		scope.EventID = eventID
	}
	tenantID, err := queryID(r, "cliente_id")
	if err != nil {
		return service.Scope{}, nil, err
	}
	if tenantID != nil {
		scope.TenantID = tenantID
	}
	return scope, req.Value, nil
}

// Toggle returns the handler flipping the named boolean setting
// @Summary Toggle a configuration flag
// @Description Flip a boolean setting of the tenant, or of one event when evento_id is given
// @Tags Configuration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param evento_id query int false "Event scope"
// @Param cliente_id query int false "Tenant scope (admins)"
// @Success 200 {object} SettingResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /toggle_{name} [post]
func (h *ConfigHandler) Toggle(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		scope, _, err := readScope(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		value, err := h.configs.Toggle(r.Context(), user, name, scope)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}

		slog.Info("Configuration toggled", "setting", name, "value", value, "user_id", user.ID)
		respondWithJSON(w, http.StatusOK, SettingResponse{
			Success: true,
			Value:   value,
			Message: fmt.Sprintf("%s is now %s", name, onOff(value)),
		})
	}
}

// Set returns the handler storing a value for the named setting
// @Summary Set a configuration value
// @Description Validate and store a setting of the tenant or of one event. Quota limits are admin-only.
// @Tags Configuration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param evento_id query int false "Event scope"
// @Param cliente_id query int false "Tenant scope (admins)"
// @Success 200 {object} SettingResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /set_{name} [post]
func (h *ConfigHandler) Set(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}
		scope, raw, err := readScope(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(raw) == 0 {
			respondWithError(w, http.StatusBadRequest, "value is required")
			return
		}

		value, err := h.configs.Set(r.Context(), user, name, scope, raw)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}

		respondWithJSON(w, http.StatusOK, SettingResponse{
			Success: true,
			Value:   value,
			Message: fmt.Sprintf("%s updated", name),
		})
	}
}

// CurrentTenant returns the configuration of the caller's tenant
// @Summary Get tenant configuration
// @Tags Configuration
// @Produce json
// @Security BearerAuth
// @Param cliente_id query int false "Tenant (admins)"
// @Success 200 {object} models.TenantConfig
// @Failure 403 {object} errorResponse
// @Router /api/configuracao_cliente_atual [get]
func (h *ConfigHandler) CurrentTenant(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	tenantID, err := queryID(r, "cliente_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.configs.Snapshot(r.Context(), user, service.Scope{TenantID: tenantID})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

// Event returns the effective configuration of an event
// @Summary Get event configuration
// @Description Returns the event's configuration, creating it from the tenant values on first access
// @Tags Configuration
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} models.TenantConfig
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/configuracao_evento/{id} [get]
func (h *ConfigHandler) Event(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidEventID)
		return
	}

	cfg, err := h.configs.Snapshot(r.Context(), user, service.Scope{EventID: &eventID})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
