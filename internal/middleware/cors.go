package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"evento/internal/config"
)

// CORSMiddleware handles CORS
type CORSMiddleware struct {
	config  *config.CORSConfig
	methods string
	headers string
	exposed string
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(cfg *config.CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{
		config:  cfg,
		methods: strings.Join(cfg.AllowedMethods, ", "),
		headers: strings.Join(cfg.AllowedHeaders, ", "),
		exposed: strings.Join(cfg.ExposedHeaders, ", "),
	}
}

func (m *CORSMiddleware) allowed(origin string) string {
	for _, o := range m.config.AllowedOrigins {
		if o == "*" && !m.config.AllowCredentials {
			return "*"
		}
		if o == origin || o == "*" {
			return origin
		}
	}
	return ""
}

// Handler handles CORS headers and answers preflight requests
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed := m.allowed(origin)
		if allowed == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Add("Vary", "Origin")
		if m.config.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Methods", m.methods)
		h.Set("Access-Control-Allow-Headers", m.headers)
		if m.exposed != "" {
			h.Set("Access-Control-Expose-Headers", m.exposed)
		}

		if r.Method == http.MethodOptions {
			if m.config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
