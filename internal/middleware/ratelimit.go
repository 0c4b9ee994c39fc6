package middleware

import (
	"net/http"
	"sync"
	"time"

	"evento/internal/config"

	"golang.org/x/time/rate"
)

const (
	// visitors are pruned once the map grows past this size
	cleanupThreshold = 500
	maxIdleAge       = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-IP token bucket. Requests per Duration refill the
// bucket, which holds up to Requests tokens.
type RateLimiter struct {
	enabled  bool
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		enabled:  cfg.Enabled && cfg.Requests > 0 && cfg.Duration > 0,
		burst:    cfg.Requests,
		visitors: make(map[string]*visitor),
	}
	if rl.enabled {
		rl.limit = rate.Every(cfg.Duration / time.Duration(cfg.Requests))
	}
	return rl
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.visitors) > cleanupThreshold {
		cutoff := time.Now().Add(-maxIdleAge)
		for k, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, k)
			}
		}
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Limit rate limits requests based on IP address
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.limiterFor(getIP(r)).Allow() {
			respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
