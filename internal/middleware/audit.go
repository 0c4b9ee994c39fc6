package middleware

import (
	"net"
	"net/http"
	"strings"

	"evento/internal/service"
)

// RequestMeta records the caller's address and user agent in the request
// context, where audit entries pick them up
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithRequestMeta(r.Context(), getIP(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getIP gets the client IP address from the request
func getIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP exposes the address the middleware attributes a request to
func ClientIP(r *http.Request) string {
	return getIP(r)
}
