package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ftsi/facsite/internal/model"
)

// RateLimiter applies a per-caller token bucket. Authenticated requests are
// keyed by user id, anonymous requests by client IP. perMinute is the steady
// rate; the burst equals the per-minute allowance.
type RateLimiter struct {
	perMinute int

	mu      sync.Mutex
	buckets map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute requests per caller.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		buckets:   make(map[string]*limiterEntry),
	}
}

// Middleware enforces the limit and answers 429 in the JSON error envelope
// when exceeded.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(callerKey(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, &model.APIError{
				Code:     model.ErrCodeInvalidRequest,
				Message:  "Trop de requêtes.",
				Category: "system",
				Action:   "Veuillez patienter avant de réessayer.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.buckets[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute),
		}
		l.buckets[key] = entry
	}
	entry.lastSeen = time.Now()

	// Opportunistic cleanup keeps the bucket map from growing without bound.
	if len(l.buckets) > 10000 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for k, e := range l.buckets {
			if e.lastSeen.Before(cutoff) {
				delete(l.buckets, k)
			}
		}
	}

	return entry.limiter.Allow()
}

func callerKey(r *http.Request) string {
	if p := PrincipalFromContext(r.Context()); p != nil {
		return "user:" + p.User.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
