package api

import (
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/rescan/internal/errors"
)

// ClientIDHeader identifies the caller when the request arrives through a
// trusted proxy; the remote IP is used otherwise
const ClientIDHeader = "X-Client-ID"

// DefaultLimiterIdleTTL is how long an unused client bucket is kept
const DefaultLimiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages rate limiting for API requests
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex

	limit rate.Limit

	// Burst size (number of requests that can be made in a burst)
	burstSize int

	trusted   map[string]bool
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter. A non-positive rps disables limiting.
// Only requests from trustedProxies may pick their bucket with ClientIDHeader.
func NewRateLimiter(rps float64, burst int, trustedProxies []string, idleTTL time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = DefaultLimiterIdleTTL
	}

	trusted := make(map[string]bool, len(trustedProxies))
	for _, proxy := range trustedProxies {
		if ip := net.ParseIP(proxy); ip != nil {
			trusted[ip.String()] = true
		}
	}

	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		limit:     rate.Limit(rps),
		burstSize: burst,
		trusted:   trusted,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Enabled reports whether requests are limited at all
func (rl *RateLimiter) Enabled() bool {
	return rl.limit > 0
}

// getLimiter returns the rate limiter for a specific client, dropping
// buckets that have been idle for longer than the idle TTL
func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		for id, entry := range rl.limiters {
			if now.Sub(entry.lastSeen) >= rl.idleTTL {
				delete(rl.limiters, id)
			}
		}
		rl.lastSweep = now
	}

	entry, exists := rl.limiters[clientID]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burstSize)}
		rl.limiters[clientID] = entry
	}
	entry.lastSeen = now

	return entry.limiter
}

// size reports how many client buckets are held
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// clientID identifies the caller for rate limiting
func (rl *RateLimiter) clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil && rl.trusted[ip.String()] {
		if id := r.Header.Get(ClientIDHeader); id != "" {
			return "client:" + id
		}
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Enabled() || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.getLimiter(rl.clientID(r))
			if !limiter.Allow() {
				retryAfter := int(math.Ceil(1 / float64(rl.limit)))
				respondServiceError(w, r, apperrors.NewRateLimitError(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
