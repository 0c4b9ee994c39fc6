package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"evento/internal/middleware"
	"evento/internal/models"
	"evento/internal/service"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JSONResponse sends a JSON response and ensures slices are never null.
// Frontends iterate list fields directly, so nil slices go out as [].
func JSONResponse(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(normalizeSlices(data))
}

var timeType = reflect.TypeOf(time.Time{})

// normalizeSlices recursively replaces nil slices with empty ones
func normalizeSlices(data any) any {
	if data == nil {
		return nil
	}
	v := reflect.ValueOf(data)

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() || v.Elem().Type() == timeType {
			return data
		}
		result := reflect.New(v.Elem().Type())
		result.Elem().Set(reflect.ValueOf(normalizeSlices(v.Elem().Interface())))
		return result.Interface()

	case reflect.Slice:
		// byte slices include json.RawMessage, which must stay nil
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return data
		}
		if v.IsNil() {
			return reflect.MakeSlice(v.Type(), 0, 0).Interface()
		}
		result := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			result.Index(i).Set(reflect.ValueOf(normalizeSlices(v.Index(i).Interface())))
		}
		return result.Interface()

	case reflect.Struct:
		if v.Type() == timeType {
			return data
		}
		result := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if !v.Type().Field(i).IsExported() {
				continue
			}
			switch field.Kind() {
			case reflect.Slice, reflect.Ptr, reflect.Struct:
				if n := normalizeSlices(field.Interface()); n != nil {
					result.Field(i).Set(reflect.ValueOf(n))
				}
			default:
				result.Field(i).Set(field)
			}
		}
		return result.Interface()
	}
	return data
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Success: false, Message: message})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrQuotaExceeded),
		errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrCertificateAlreadyIssued):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes the status and message for err. Unexpected
// errors are logged and answered with a generic message.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusInternalServerError:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, code, ErrMsgInternal)
	case http.StatusBadGateway:
		slog.Warn("External service failed", "path", r.URL.Path, "error", err)
		respondWithError(w, code, ErrMsgExternal)
	default:
		respondWithError(w, code, err.Error())
	}
}

// decodeJSON reads the request body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.New(ErrMsgInvalidRequestBody)
	}
	return nil
}

// pathID parses a numeric path value
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// queryID parses an optional numeric query parameter
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid " + name)
	}
	return &id, nil
}

// currentUser returns the authenticated user or answers 401
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
	}
	return user, ok
}
