package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"evento/internal/metrics"
)

// request bodies under these prefixes carry passwords or payment data and
// are never logged
var sensitivePrefixes = []string{"/api/v1/auth/", "/api/v1/payment-credentials/"}

// responseWriter wraps http.ResponseWriter to capture status code and response body
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.body != nil {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func sensitive(path string) bool {
	for _, p := range sensitivePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// LoggingMiddleware logs all HTTP requests with level-based detail and
// records request metrics.
//
// Log levels:
// - INFO: Every request with Remote-IP, User-Agent, HTTP-Method, and Path
// - DEBUG: Additionally logs Request-Body, Response-Body, and all Query-Parameters
// - WARN: Only failed requests (status 4xx)
// - ERROR: Only errors (status 5xx)
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		debug := slog.Default().Enabled(r.Context(), slog.LevelDebug) && !sensitive(r.URL.Path)
		remoteIP := getIP(r)

		var requestBody []byte
		if debug && r.Body != nil {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		if debug {
			wrapped.body = &bytes.Buffer{}
		}

		if debug {
			attrs := []any{
				"remote_ip", remoteIP,
				"user_agent", r.UserAgent(),
				"method", r.Method,
				"path", r.URL.Path,
			}
			if len(r.URL.Query()) > 0 {
				attrs = append(attrs, "query_params", map[string][]string(r.URL.Query()))
			}
			if len(requestBody) > 0 {
				attrs = append(attrs, "request_body", string(requestBody))
			}
			slog.Debug("Incoming request", attrs...)
		} else {
			slog.Info("Incoming request",
				"remote_ip", remoteIP,
				"user_agent", r.UserAgent(),
				"method", r.Method,
				"path", r.URL.Path,
			)
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		// the mux fills in the matched pattern on the request it was handed
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(r.Method, route, strconv.Itoa(wrapped.statusCode), duration)

		var logLevel slog.Level
		var logMessage string
		switch {
		case wrapped.statusCode >= 500:
			logLevel = slog.LevelError
			logMessage = "Request failed with error"
		case wrapped.statusCode >= 400:
			logLevel = slog.LevelWarn
			logMessage = "Request failed"
		default:
			logLevel = slog.LevelInfo
			logMessage = "Request completed"
		}

		attrs := []any{
			"remote_ip", remoteIP,
			"user_agent", r.UserAgent(),
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", wrapped.statusCode,
			"duration_ms", duration.Milliseconds(),
		}
		if debug && wrapped.body.Len() > 0 {
			attrs = append(attrs, "response_body", wrapped.body.String())
		}

		slog.Log(r.Context(), logLevel, logMessage, attrs...)
	})
}
